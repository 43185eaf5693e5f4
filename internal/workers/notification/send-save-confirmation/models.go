package sendsaveconfirmation

type Input struct {
	UserID          string `json:"userId"`
	ConfigurationID string `json:"configurationId"`
	PlanName        string `json:"planName"`
	TotalPrice      int64  `json:"totalPrice"` // cents
	Email           string `json:"email,omitempty"`
	PhoneNumber     string `json:"phoneNumber,omitempty"`
}

type Output struct {
	NotificationID string `json:"notificationId"`
	EmailSent      bool   `json:"emailSent"`
	SMSSent        bool   `json:"smsSent"`
	SentAt         string `json:"sentAt"`
}
