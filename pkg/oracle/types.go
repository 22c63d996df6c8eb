package oracle

// tonapi response shapes; only the fields read by the client are declared.

type event struct {
	EventID   string   `json:"event_id"`
	Timestamp int64    `json:"timestamp"`
	Actions   []action `json:"actions"`
	IsScam    bool     `json:"is_scam"`
}

type action struct {
	Type        string       `json:"type"`
	Status      string       `json:"status"`
	TonTransfer *tonTransfer `json:"TonTransfer,omitempty"`
}

type tonTransfer struct {
	Sender    accountRef `json:"sender"`
	Recipient accountRef `json:"recipient"`
	Amount    int64      `json:"amount"`
	Comment   string     `json:"comment,omitempty"`
}

type accountRef struct {
	Address string `json:"address"`
	IsScam  bool   `json:"is_scam,omitempty"`
}

type accountInfo struct {
	Address string `json:"address"`
	Balance int64  `json:"balance"`
	Status  string `json:"status"`
}

type eventsResponse struct {
	Events []event `json:"events"`
}
