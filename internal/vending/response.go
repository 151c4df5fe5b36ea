package vending

import "errors"

// Response is the result code returned by every machine operation.
type Response int

const (
	OK Response = iota
	InvalidParam
	IllegalOperation
	CannotPerform
	InsufficientMoney
	InsufficientProduct
)

var (
	ErrInvalidParam        = errors.New("invalid parameter")
	ErrIllegalOperation    = errors.New("operation not allowed in current mode")
	ErrCannotPerform       = errors.New("operation blocked by machine state")
	ErrInsufficientMoney   = errors.New("insufficient money")
	ErrInsufficientProduct = errors.New("insufficient product")
)

func (r Response) String() string {
	switch r {
	case OK:
		return "OK"
	case InvalidParam:
		return "INVALID_PARAM"
	case IllegalOperation:
		return "ILLEGAL_OPERATION"
	case CannotPerform:
		return "CANNOT_PERFORM"
	case InsufficientMoney:
		return "INSUFFICIENT_MONEY"
	case InsufficientProduct:
		return "INSUFFICIENT_PRODUCT"
	default:
		return "UNKNOWN"
	}
}

// Err returns the sentinel error matching r, or nil for OK.
func (r Response) Err() error {
	switch r {
	case OK:
		return nil
	case InvalidParam:
		return ErrInvalidParam
	case IllegalOperation:
		return ErrIllegalOperation
	case CannotPerform:
		return ErrCannotPerform
	case InsufficientMoney:
		return ErrInsufficientMoney
	case InsufficientProduct:
		return ErrInsufficientProduct
	default:
		return errors.New("unknown response")
	}
}

// Mode is the access mode of a machine.
type Mode int

const (
	ModeOperation Mode = iota
	ModeAdministering
)

func (m Mode) String() string {
	if m == ModeAdministering {
		return "administering"
	}
	return "operation"
}

// Operation names a mutating machine operation.
type Operation string

const (
	OpEnterAdmin   Operation = "enter_admin"
	OpExitAdmin    Operation = "exit_admin"
	OpFillCoins    Operation = "fill_coins"
	OpFillProducts Operation = "fill_products"
	OpPutCoin1     Operation = "put_coin1"
	OpPutCoin2     Operation = "put_coin2"
	OpGiveProduct1 Operation = "give_product1"
	OpGiveProduct2 Operation = "give_product2"
	OpReturnMoney  Operation = "return_money"
)
