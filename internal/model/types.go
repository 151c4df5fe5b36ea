// Package model defines the wire types used by the service.
package model

import "time"

// Event is one entry of a machine's operations journal.
type Event struct {
	MachineID string    `json:"machine_id"`
	Sequence  uint64    `json:"sequence"`
	Operation string    `json:"operation"`
	Result    string    `json:"result"`
	Mode      string    `json:"mode"`
	Balance   int       `json:"balance"`
	At        time.Time `json:"at"`
}

// Machine is the customer-visible view of a vending machine. Stock counters
// read as zero outside admin mode; Sum is only reported while administering.
type Machine struct {
	ID       string `json:"id"`
	Mode     string `json:"mode"`
	Balance  int    `json:"balance"`
	Price1   int    `json:"price1"`
	Price2   int    `json:"price2"`
	Coins1   int    `json:"coins1"`
	Coins2   int    `json:"coins2"`
	Product1 int    `json:"product1"`
	Product2 int    `json:"product2"`
	Sum      *int   `json:"sum,omitempty"`
}

// Result is the payload returned by every machine operation.
type Result struct {
	Result   string  `json:"result"`
	Reason   string  `json:"reason,omitempty"`
	Machine  Machine `json:"machine"`
	Returned *int    `json:"returned,omitempty"`
}
