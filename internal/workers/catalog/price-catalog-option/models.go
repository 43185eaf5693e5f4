package pricecatalogoption

type Input struct {
	OptionID string `json:"optionId"`
}

type Output struct {
	OptionID    string `json:"optionId"`
	ClientPrice int64  `json:"clientPrice"`
	Indexed     bool   `json:"indexed"`
}
