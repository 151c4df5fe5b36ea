// Package vending implements the two-product, two-coin vending machine state
// machine with an operator (admin) mode.
package vending

import "sync"

// Stock limits, coin values, product prices and the operator credential.
const (
	MaxProduct1 = 30
	MaxProduct2 = 40
	MaxCoins    = 50

	Value1 = 1
	Value2 = 2

	Price1 = 8
	Price2 = 5

	// AdminCode is the credential accepted by EnterAdminMode.
	AdminCode int64 = 117345294655382
)

// Record describes a completed mutating operation.
type Record struct {
	Operation Operation
	Result    Response
	Mode      Mode
	Balance   int
}

// Recorder receives a Record after every mutating operation. Record is called
// while the machine is locked, so records arrive in the order the operations
// were applied. Implementations must not call back into the machine.
type Recorder interface {
	Record(Record)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(Record)

func (f RecorderFunc) Record(r Record) { f(r) }

// Option configures a Machine during construction.
type Option func(*Machine)

// WithRecorder attaches a Recorder. Nil recorders are ignored.
func WithRecorder(r Recorder) Option {
	return func(m *Machine) {
		if r != nil {
			m.rec = r
		}
	}
}

// Machine is a single vending machine. All operations are safe for
// concurrent use; each one runs as a single check-then-act step.
//
// Coins inserted by the current customer are held in escrow until a purchase
// commits them to the hoppers or ReturnMoney hands them back. Escrow counts
// towards hopper capacity. Escrow is always empty in admin mode, since admin
// mode requires a zero balance and inserted coins always carry value.
type Machine struct {
	mu       sync.Mutex
	mode     Mode
	coins1   int
	coins2   int
	escrow1  int
	escrow2  int
	product1 int
	product2 int
	balance  int

	rec Recorder
}

// New returns a machine in operation mode with every counter at zero.
func New(opts ...Option) *Machine {
	m := &Machine{mode: ModeOperation}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// visible masks internal stock outside admin mode.
func visible(mode Mode, v int) int {
	if mode == ModeAdministering {
		return v
	}
	return 0
}

// Mode reports the current access mode.
func (m *Machine) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Price1 and Price2 return the fixed product prices.
func (m *Machine) Price1() int { return Price1 }
func (m *Machine) Price2() int { return Price2 }

// Balance is the money inserted by the current customer and not yet spent.
func (m *Machine) Balance() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance
}

// Coins1, Coins2, Product1 and Product2 report stock in admin mode and zero
// otherwise.
func (m *Machine) Coins1() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return visible(m.mode, m.coins1)
}

func (m *Machine) Coins2() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return visible(m.mode, m.coins2)
}

func (m *Machine) Product1() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return visible(m.mode, m.product1)
}

func (m *Machine) Product2() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return visible(m.mode, m.product2)
}

// State is a consistent, mode-masked view of a machine.
type State struct {
	Mode     Mode
	Balance  int
	Coins1   int
	Coins2   int
	Product1 int
	Product2 int
	Sum      int
}

// Snapshot reads every counter under one lock, applying the same masking as
// the individual getters.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

func (m *Machine) snapshot() State {
	return State{
		Mode:     m.mode,
		Balance:  m.balance,
		Coins1:   visible(m.mode, m.coins1),
		Coins2:   visible(m.mode, m.coins2),
		Product1: visible(m.mode, m.product1),
		Product2: visible(m.mode, m.product2),
		Sum:      m.coins1*Value1 + m.coins2*Value2,
	}
}

// Sum is the monetary value of the coins held in the hoppers.
func (m *Machine) Sum() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.coins1*Value1 + m.coins2*Value2
}

// Command is a mutating operation together with its arguments.
type Command struct {
	Op Operation

	Code     int64 // OpEnterAdmin
	Coins1   int   // OpFillCoins
	Coins2   int   // OpFillCoins
	Quantity int   // OpGiveProduct1, OpGiveProduct2
}

// Outcome is the result of a Command and the machine state right after it.
type Outcome struct {
	Result   Response
	State    State
	Returned int // OpReturnMoney
}

// Execute applies c as a single critical section. The returned State and the
// Record handed to the recorder both reflect exactly this operation. Unknown
// operations yield InvalidParam and are not recorded.
func (m *Machine) Execute(c Command) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out Outcome
	switch c.Op {
	case OpEnterAdmin:
		out.Result = m.enterAdmin(c.Code)
	case OpExitAdmin:
		m.mode = ModeOperation
		out.Result = OK
	case OpFillCoins:
		out.Result = m.fillCoins(c.Coins1, c.Coins2)
	case OpFillProducts:
		if m.mode == ModeAdministering {
			m.product1, m.product2 = MaxProduct1, MaxProduct2
		}
		out.Result = OK
	case OpPutCoin1:
		out.Result = m.putCoin(m.coins1, &m.escrow1, Value1)
	case OpPutCoin2:
		out.Result = m.putCoin(m.coins2, &m.escrow2, Value2)
	case OpGiveProduct1:
		out.Result = m.giveProduct(&m.product1, Price1, c.Quantity)
	case OpGiveProduct2:
		out.Result = m.giveProduct(&m.product2, Price2, c.Quantity)
	case OpReturnMoney:
		out.Returned, out.Result = m.refund()
	default:
		out.Result = InvalidParam
		out.State = m.snapshot()
		return out
	}
	out.State = m.snapshot()
	if m.rec != nil {
		m.rec.Record(Record{Operation: c.Op, Result: out.Result, Mode: m.mode, Balance: m.balance})
	}
	return out
}

// EnterAdminMode switches to admin mode. The code is checked before the
// balance. Entering again while already administering is accepted as a no-op.
func (m *Machine) EnterAdminMode(code int64) Response {
	return m.Execute(Command{Op: OpEnterAdmin, Code: code}).Result
}

// ExitAdminMode returns to operation mode. It always succeeds.
func (m *Machine) ExitAdminMode() Response {
	return m.Execute(Command{Op: OpExitAdmin}).Result
}

// FillCoins sets both hopper counters. The values replace the current stock.
func (m *Machine) FillCoins(n1, n2 int) Response {
	return m.Execute(Command{Op: OpFillCoins, Coins1: n1, Coins2: n2}).Result
}

// FillProducts restocks both products to capacity. Outside admin mode it
// does nothing.
func (m *Machine) FillProducts() Response {
	return m.Execute(Command{Op: OpFillProducts}).Result
}

// PutCoin1 inserts a coin of Value1.
func (m *Machine) PutCoin1() Response {
	return m.Execute(Command{Op: OpPutCoin1}).Result
}

// PutCoin2 inserts a coin of Value2.
func (m *Machine) PutCoin2() Response {
	return m.Execute(Command{Op: OpPutCoin2}).Result
}

// GiveProduct1 dispenses qty units of product 1 at Price1 each.
func (m *Machine) GiveProduct1(qty int) Response {
	return m.Execute(Command{Op: OpGiveProduct1, Quantity: qty}).Result
}

// GiveProduct2 dispenses qty units of product 2 at Price2 each.
func (m *Machine) GiveProduct2(qty int) Response {
	return m.Execute(Command{Op: OpGiveProduct2, Quantity: qty}).Result
}

// ReturnMoney hands the whole balance back to the customer. Coins still in
// escrow go back with it; the hoppers are not touched.
func (m *Machine) ReturnMoney() Response {
	return m.Execute(Command{Op: OpReturnMoney}).Result
}

// Refund is ReturnMoney that also reports the amount handed back.
func (m *Machine) Refund() (int, Response) {
	out := m.Execute(Command{Op: OpReturnMoney})
	return out.Returned, out.Result
}

// The helpers below run with m.mu held and mutate only on OK.

func (m *Machine) enterAdmin(code int64) Response {
	if code != AdminCode {
		return InvalidParam
	}
	if m.balance != 0 {
		return CannotPerform
	}
	m.mode = ModeAdministering
	return OK
}

func (m *Machine) fillCoins(n1, n2 int) Response {
	if m.mode != ModeAdministering {
		return IllegalOperation
	}
	if n1 < 0 || n2 < 0 || n1 > MaxCoins || n2 > MaxCoins {
		return InvalidParam
	}
	m.coins1, m.coins2 = n1, n2
	return OK
}

func (m *Machine) putCoin(hopper int, escrow *int, value int) Response {
	if m.mode == ModeAdministering {
		return IllegalOperation
	}
	if hopper+*escrow >= MaxCoins {
		return CannotPerform
	}
	*escrow++
	m.balance += value
	return OK
}

// giveProduct charges price per unit and commits escrowed coins to the
// hoppers. Stock is checked before money.
func (m *Machine) giveProduct(stock *int, price, qty int) Response {
	if m.mode == ModeAdministering {
		return IllegalOperation
	}
	if qty < 1 {
		return InvalidParam
	}
	if *stock < qty {
		return InsufficientProduct
	}
	cost := price * qty
	if m.balance < cost {
		return InsufficientMoney
	}
	m.balance -= cost
	*stock -= qty
	m.coins1 += m.escrow1
	m.coins2 += m.escrow2
	m.escrow1, m.escrow2 = 0, 0
	return OK
}

func (m *Machine) refund() (int, Response) {
	if m.mode == ModeAdministering {
		return 0, IllegalOperation
	}
	returned := m.balance
	m.balance = 0
	m.escrow1, m.escrow2 = 0, 0
	return returned, OK
}
