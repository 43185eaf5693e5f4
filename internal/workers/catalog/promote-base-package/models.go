package promotebasepackage

type Input struct {
	PlanID    string `json:"planId"`
	PackageID string `json:"packageId"`
}

type Output struct {
	PlanID             string `json:"planId"`
	PackageID          string `json:"packageId"`
	RecomputedPackages int    `json:"recomputedPackages"`
}
