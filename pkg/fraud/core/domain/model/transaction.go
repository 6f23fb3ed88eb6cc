package model

import (
	"encoding/json"
	"fmt"
)

// Transaction is a scored financial event persisted for the dashboard.
type Transaction struct {
	ID           string   `json:"id" bson:"_id"`
	Amount       float64  `json:"amount" bson:"amount"`
	Timestamp    int64    `json:"timestamp" bson:"timestamp"`
	IsFraud      bool     `json:"isFraud" bson:"isFraud"`
	ProductCD    string   `json:"productCD,omitempty" bson:"productCD,omitempty"`
	Card1        string   `json:"card1,omitempty" bson:"card1,omitempty"`
	Card2        string   `json:"card2,omitempty" bson:"card2,omitempty"`
	Card3        string   `json:"card3,omitempty" bson:"card3,omitempty"`
	Card4        string   `json:"card4,omitempty" bson:"card4,omitempty"`
	Card5        string   `json:"card5,omitempty" bson:"card5,omitempty"`
	Card6        string   `json:"card6,omitempty" bson:"card6,omitempty"`
	Addr1        string   `json:"addr1,omitempty" bson:"addr1,omitempty"`
	Addr2        string   `json:"addr2,omitempty" bson:"addr2,omitempty"`
	Dist1        *float64 `json:"dist1,omitempty" bson:"dist1,omitempty"`
	Dist2        *float64 `json:"dist2,omitempty" bson:"dist2,omitempty"`
	PEmailDomain string   `json:"pEmaildomain,omitempty" bson:"pEmaildomain,omitempty"`
	REmailDomain string   `json:"rEmaildomain,omitempty" bson:"rEmaildomain,omitempty"`
}

// UnmarshalJSON accepts the id as a JSON string or number. Events in the
// dataset form, keyed by TransactionID and P_emaildomain/R_emaildomain, are
// accepted as well.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	type plain Transaction
	aux := struct {
		*plain
		ID            json.RawMessage `json:"id"`
		TransactionID json.RawMessage `json:"TransactionID"`
		PEmailDomain  string          `json:"P_emaildomain"`
		REmailDomain  string          `json:"R_emaildomain"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	raw := aux.ID
	if len(raw) == 0 {
		raw = aux.TransactionID
	}
	id, err := decodeTransactionID(raw)
	if err != nil {
		return err
	}
	t.ID = id
	if t.PEmailDomain == "" {
		t.PEmailDomain = aux.PEmailDomain
	}
	if t.REmailDomain == "" {
		t.REmailDomain = aux.REmailDomain
	}
	return nil
}

func decodeTransactionID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("transaction id must be a string or a number, got %s", raw)
	}
	return n.String(), nil
}

// TimeRange is an inclusive range of epoch seconds.
type TimeRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// TransactionStats is the dashboard aggregate over a time range.
type TransactionStats struct {
	TotalCount       int64     `json:"totalCount"`
	TotalAmount      float64   `json:"totalAmount"`
	FraudCount       int64     `json:"fraudCount"`
	TotalFraudAmount float64   `json:"totalFraudAmount"`
	Range            TimeRange `json:"range"`
}
