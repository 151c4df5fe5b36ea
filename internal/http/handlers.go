package httpapi

import (
	"encoding/json"
	"errors"
	"expvar"
	"io"
	"mime"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fairyhunter13/vending-machine-simulator/internal/config"
	httpopenapi "github.com/fairyhunter13/vending-machine-simulator/internal/http/openapi"
	"github.com/fairyhunter13/vending-machine-simulator/internal/model"
	"github.com/fairyhunter13/vending-machine-simulator/internal/obs"
	"github.com/fairyhunter13/vending-machine-simulator/internal/queue"
	"github.com/fairyhunter13/vending-machine-simulator/internal/store"
	"github.com/fairyhunter13/vending-machine-simulator/internal/vending"
)

// operations counts results per operation, e.g. "put_coin1.OK".
var operations = expvar.NewMap("vending_operations")

type App struct {
	Cfg     config.Config
	Store   *store.Store
	Manager *queue.Manager
	closing atomic.Bool
	started time.Time
}

func NewApp(cfg config.Config, st *store.Store, m *queue.Manager) *App {
	return &App{Cfg: cfg, Store: st, Manager: m, started: time.Now()}
}

// StartShutdown stops accepting mutations. Journal intake stays open so that
// requests already past the gate are still journaled; the caller closes it
// once the HTTP server has finished in-flight requests.
func (a *App) StartShutdown() {
	a.closing.Store(true)
}

type enterAdminRequest struct {
	Code int64 `json:"code"`
}

type fillCoinsRequest struct {
	Coins1 *int `json:"coins1"`
	Coins2 *int `json:"coins2"`
}

type dispenseRequest struct {
	Quantity *int `json:"quantity"`
}

// statusFor maps a machine response onto an HTTP status.
func statusFor(res vending.Response) int {
	err := res.Err()
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, vending.ErrInvalidParam):
		return http.StatusBadRequest
	case errors.Is(err, vending.ErrInsufficientMoney):
		return http.StatusPaymentRequired
	case errors.Is(err, vending.ErrIllegalOperation),
		errors.Is(err, vending.ErrCannotPerform),
		errors.Is(err, vending.ErrInsufficientProduct):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func view(id string, s vending.State) model.Machine {
	v := model.Machine{
		ID:       id,
		Mode:     s.Mode.String(),
		Balance:  s.Balance,
		Price1:   vending.Price1,
		Price2:   vending.Price2,
		Coins1:   s.Coins1,
		Coins2:   s.Coins2,
		Product1: s.Product1,
		Product2: s.Product2,
	}
	if s.Mode == vending.ModeAdministering {
		sum := s.Sum
		v.Sum = &sum
	}
	return v
}

// machine resolves the {id} URL parameter, writing 404 when unknown.
func (a *App) machine(w http.ResponseWriter, r *http.Request) (string, *vending.Machine, bool) {
	id := chi.URLParam(r, "id")
	m, ok := a.Store.Get(id)
	if !ok {
		WriteJSONError(w, http.StatusNotFound, "not_found", "machine "+id)
		return "", nil, false
	}
	return id, m, true
}

// slot parses a 1-or-2 URL parameter.
func slot(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || (n != 1 && n != 2) {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", name+" must be 1 or 2")
		return 0, false
	}
	return n, true
}

// decodeJSON decodes the request body into dst. With optional set, an empty
// body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	if optional && r.ContentLength == 0 {
		return true
	}
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "application/json" {
		WriteJSONError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "expected application/json")
		return false
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	if dec.More() {
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", "unexpected data after JSON value")
		return false
	}
	return true
}

// execute runs cmd on the machine and writes the outcome, including the
// state the operation left behind.
func (a *App) execute(w http.ResponseWriter, r *http.Request, id string, m *vending.Machine, cmd vending.Command) {
	out := m.Execute(cmd)
	res := out.Result
	operations.Add(string(cmd.Op)+"."+res.String(), 1)
	obs.Logger.Info("machine_operation",
		obs.MachineID(id),
		obs.Operation(string(cmd.Op)),
		obs.Result(res.String()),
		obs.RequestID(RequestIDFromContext(r.Context())),
	)
	body := model.Result{
		Result:  res.String(),
		Machine: view(id, out.State),
	}
	if err := res.Err(); err != nil {
		body.Reason = err.Error()
	} else if cmd.Op == vending.OpReturnMoney {
		returned := out.Returned
		body.Returned = &returned
	}
	writeJSON(w, statusFor(res), body)
}

func (a *App) createMachine(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	m := vending.New(vending.WithRecorder(a.Manager.Recorder(id)))
	if err := a.Store.Put(id, m); err != nil {
		if errors.Is(err, store.ErrCapacity) {
			WriteJSONError(w, http.StatusConflict, "capacity_reached", err.Error())
			return
		}
		obs.Logger.Error("machine_create_failed", obs.Error(err))
		WriteJSONError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	obs.Logger.Info("machine_created", obs.MachineID(id), obs.RequestID(RequestIDFromContext(r.Context())))
	w.Header().Set("Location", "/machines/"+id)
	writeJSON(w, http.StatusCreated, view(id, m.Snapshot()))
}

func (a *App) listMachines(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"machines": a.Store.List()})
}

func (a *App) getMachine(w http.ResponseWriter, r *http.Request) {
	id, m, ok := a.machine(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, view(id, m.Snapshot()))
}

func (a *App) deleteMachine(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !a.Store.Delete(id) {
		WriteJSONError(w, http.StatusNotFound, "not_found", "machine "+id)
		return
	}
	obs.Logger.Info("machine_deleted", obs.MachineID(id))
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) listEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			WriteJSONError(w, http.StatusBadRequest, "validation_error", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	evs, err := a.Store.Events(id, limit)
	if err != nil {
		WriteJSONError(w, http.StatusNotFound, "not_found", "machine "+id)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]model.Event{"events": evs})
}

func (a *App) putCoin(w http.ResponseWriter, r *http.Request) {
	id, m, ok := a.machine(w, r)
	if !ok {
		return
	}
	coin, ok := slot(w, r, "coin")
	if !ok {
		return
	}
	op := vending.OpPutCoin1
	if coin == 2 {
		op = vending.OpPutCoin2
	}
	a.execute(w, r, id, m, vending.Command{Op: op})
}

func (a *App) giveProduct(w http.ResponseWriter, r *http.Request) {
	id, m, ok := a.machine(w, r)
	if !ok {
		return
	}
	product, ok := slot(w, r, "product")
	if !ok {
		return
	}
	var req dispenseRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	op := vending.OpGiveProduct1
	if product == 2 {
		op = vending.OpGiveProduct2
	}
	a.execute(w, r, id, m, vending.Command{Op: op, Quantity: qty})
}

func (a *App) returnMoney(w http.ResponseWriter, r *http.Request) {
	id, m, ok := a.machine(w, r)
	if !ok {
		return
	}
	a.execute(w, r, id, m, vending.Command{Op: vending.OpReturnMoney})
}

func (a *App) enterAdmin(w http.ResponseWriter, r *http.Request) {
	id, m, ok := a.machine(w, r)
	if !ok {
		return
	}
	var req enterAdminRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.Code != vending.AdminCode {
		obs.Logger.Warn("admin_code_rejected", obs.MachineID(id), obs.RequestID(RequestIDFromContext(r.Context())))
	}
	a.execute(w, r, id, m, vending.Command{Op: vending.OpEnterAdmin, Code: req.Code})
}

func (a *App) exitAdmin(w http.ResponseWriter, r *http.Request) {
	id, m, ok := a.machine(w, r)
	if !ok {
		return
	}
	a.execute(w, r, id, m, vending.Command{Op: vending.OpExitAdmin})
}

func (a *App) fillCoins(w http.ResponseWriter, r *http.Request) {
	id, m, ok := a.machine(w, r)
	if !ok {
		return
	}
	var req fillCoinsRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.Coins1 == nil || req.Coins2 == nil {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "coins1 and coins2 are required")
		return
	}
	a.execute(w, r, id, m, vending.Command{Op: vending.OpFillCoins, Coins1: *req.Coins1, Coins2: *req.Coins2})
}

func (a *App) fillProducts(w http.ResponseWriter, r *http.Request) {
	id, m, ok := a.machine(w, r)
	if !ok {
		return
	}
	a.execute(w, r, id, m, vending.Command{Op: vending.OpFillProducts})
}

func (a *App) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) metricsHandler(w http.ResponseWriter, _ *http.Request) {
	st := a.Manager.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"machines":         a.Store.Len(),
		"events_enqueued":  st.Enqueued,
		"events_processed": st.Processed,
		"backlog_size":     a.Manager.BacklogSize(),
		"queue_depth":      a.Manager.QueueDepth(),
		"intake_closed":    a.Manager.IsShuttingDown(),
		"worker_count":     a.Manager.WorkerCount(),
		"uptime_sec":       time.Since(a.started).Seconds(),
	})
}

func (a *App) openapiHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(httpopenapi.YAML)
}

func (a *App) docsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, docsHTML)
}

const docsHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Vending Machine API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui'
      });
    </script>
  </body>
</html>`
