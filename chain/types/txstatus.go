package types

// TxConfirmation locates a mined transaction.
type TxConfirmation struct {
	BlockIndepHash        string `json:"block_indep_hash"`
	BlockHeight           int64  `json:"block_height"`
	NumberOfConfirmations int64  `json:"number_of_confirmations"`
}

// TxStatus is the HTTP status of a status lookup and, for 200, where the
// transaction was mined.
type TxStatus struct {
	Status    int             `json:"status"`
	Confirmed *TxConfirmation `json:"confirmed"`
}

func (s TxStatus) IsConfirmed() bool {
	return s.Status == 200 && s.Confirmed != nil
}
