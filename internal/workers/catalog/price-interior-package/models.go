package priceinteriorpackage

type Input struct {
	PackageID string `json:"packageId"`
}

type Output struct {
	PackageID    string `json:"packageId"`
	TotalCost    int64  `json:"totalCost"`
	ClientPrice  int64  `json:"clientPrice"`
	BasePromoted bool   `json:"basePromoted"`
}
