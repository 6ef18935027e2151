package cart

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/velourastyle/storefront-gateway/internal/remotecart"
	pkgerrors "github.com/velourastyle/storefront-gateway/pkg/errors"
	"github.com/velourastyle/storefront-gateway/pkg/logger"
	"github.com/velourastyle/storefront-gateway/pkg/metrics"
	"github.com/velourastyle/storefront-gateway/pkg/sharedstore"
	"github.com/velourastyle/storefront-gateway/pkg/storage"
)

const (
	outcomeSuccess = "success"
	outcomePartial = "partial"
	outcomeFailure = "failure"
	outcomeEmpty   = "empty"
)

// RemoteCart is the priced-cart service surface the engine reconciles against.
type RemoteCart interface {
	Create(ctx context.Context) (string, error)
	ListLines(ctx context.Context, cartID string) ([]string, error)
	RemoveLines(ctx context.Context, cartID string, lineIDs []string) error
	AddLines(ctx context.Context, cartID string, lines []remotecart.LineInput) (*remotecart.AddLinesResult, error)
	SetDiscountCodes(ctx context.Context, cartID string, codes []string) (*remotecart.DiscountResult, error)
}

// VariantResolver resolves a product handle to a purchasable variant id.
type VariantResolver interface {
	LookupVariant(ctx context.Context, handle string) (string, error)
}

// SharedStore is the multi-writer per-customer record store. All writes to it
// are best effort; the durable local cache remains the source of truth for
// this gateway's own view.
type SharedStore interface {
	Write(ctx context.Context, namespace, key, value string) error
	Read(ctx context.Context, namespace, key string) (string, error)
	Delete(ctx context.Context, namespace, key string) error
	List(ctx context.Context, namespace string) (map[string]string, error)
}

type state struct {
	mu         sync.Mutex
	lines      map[string]Line
	remoteID   string
	code       string
	cost       *remotecart.Cost
	seqIssued  uint64
	seqApplied uint64
	loaded     bool
}

// Engine mediates the durable local cache, the shared store, and the remote
// priced cart. Local mutations are written through to the cache synchronously;
// shared-store and remote writes are best effort, with the remote cost
// snapshot guarded by monotonic sync sequence numbers so an out-of-order
// response can never overwrite a newer one.
type Engine struct {
	mu      sync.Mutex
	states  map[string]*state
	cache   storage.KV
	shared  SharedStore
	remote  RemoteCart
	catalog VariantResolver
	logger  *logger.Logger
	metrics *metrics.SyncMetrics
}

// NewEngine validates dependencies and builds the reconciliation engine.
func NewEngine(cache storage.KV, shared SharedStore, remote RemoteCart, catalog VariantResolver, logg *logger.Logger, m *metrics.SyncMetrics) (*Engine, error) {
	if cache == nil {
		return nil, fmt.Errorf("local cache is required")
	}
	if shared == nil {
		return nil, fmt.Errorf("shared store is required")
	}
	if remote == nil {
		return nil, fmt.Errorf("remote cart client is required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("variant resolver is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Engine{
		states:  make(map[string]*state),
		cache:   cache,
		shared:  shared,
		remote:  remote,
		catalog: catalog,
		logger:  logg,
		metrics: m,
	}, nil
}

// Get returns the current cart without touching the remote service.
func (e *Engine) Get(ctx context.Context, customerID string) (*View, error) {
	st, err := e.load(ctx, customerID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return e.viewLocked(st), nil
}

// UpsertLine adds a line or merges quantity into an existing one, then
// refreshes the remote snapshot. A failed refresh leaves the mutation intact
// and surfaces through the Stale flag.
func (e *Engine) UpsertLine(ctx context.Context, customerID string, input LineInput) (*View, error) {
	if input.Key == "" || input.Handle == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "line key and handle are required")
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must not be negative")
	}
	if input.Quantity == 0 {
		input.Quantity = 1
	}

	st, err := e.load(ctx, customerID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	line, exists := st.lines[input.Key]
	if exists {
		line.Quantity += input.Quantity
		if input.VariantID != "" && input.VariantID != line.VariantID {
			line.VariantID = input.VariantID
			line.Unresolved = false
		}
		if input.SelectedOptions != nil {
			line.SelectedOptions = input.SelectedOptions
		}
	} else {
		line = Line{
			Key:             input.Key,
			Handle:          input.Handle,
			Title:           input.Title,
			ImageURL:        input.ImageURL,
			Price:           input.Price,
			Currency:        input.Currency,
			Quantity:        input.Quantity,
			VariantID:       input.VariantID,
			SelectedOptions: input.SelectedOptions,
		}
		if _, ok := ParseAmount(line.Price); !ok {
			line.PriceUnparsed = true
			e.metrics.IncPriceParseFailure()
			e.logger.Warn(e.logger.WithProductKey(ctx, line.Key), "line price unparsable, contributing zero")
		}
	}
	st.lines[input.Key] = line
	if err := e.persistLocked(ctx, customerID, st); err != nil {
		st.mu.Unlock()
		return nil, err
	}
	st.mu.Unlock()

	e.shareLine(ctx, customerID, line)
	return e.syncState(ctx, customerID, st, true)
}

// SetQuantity replaces a line's quantity. Zero removes the line.
func (e *Engine) SetQuantity(ctx context.Context, customerID, key string, quantity int) (*View, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must not be negative")
	}
	if quantity == 0 {
		return e.RemoveLine(ctx, customerID, key)
	}

	st, err := e.load(ctx, customerID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	line, ok := st.lines[key]
	if !ok {
		st.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no cart line for key %q", key))
	}
	line.Quantity = quantity
	st.lines[key] = line
	if err := e.persistLocked(ctx, customerID, st); err != nil {
		st.mu.Unlock()
		return nil, err
	}
	st.mu.Unlock()

	e.shareLine(ctx, customerID, line)
	return e.syncState(ctx, customerID, st, true)
}

// RemoveLine drops a line; removing an absent line is a no-op.
func (e *Engine) RemoveLine(ctx context.Context, customerID, key string) (*View, error) {
	st, err := e.load(ctx, customerID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	if _, ok := st.lines[key]; !ok {
		view := e.viewLocked(st)
		st.mu.Unlock()
		return view, nil
	}
	delete(st.lines, key)
	if err := e.persistLocked(ctx, customerID, st); err != nil {
		st.mu.Unlock()
		return nil, err
	}
	st.mu.Unlock()

	e.unshareLine(ctx, customerID, key)
	return e.syncState(ctx, customerID, st, true)
}

// Clear empties the cart. The empty-cart reconciliation path resets the
// remote cart id and cost snapshot.
func (e *Engine) Clear(ctx context.Context, customerID string) (*View, error) {
	st, err := e.load(ctx, customerID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	keys := make([]string, 0, len(st.lines))
	for key := range st.lines {
		keys = append(keys, key)
	}
	st.lines = make(map[string]Line)
	st.code = ""
	if err := e.persistLocked(ctx, customerID, st); err != nil {
		st.mu.Unlock()
		return nil, err
	}
	st.mu.Unlock()

	for _, key := range keys {
		e.unshareLine(ctx, customerID, key)
	}
	return e.syncState(ctx, customerID, st, true)
}

// Sync forces a reconciliation run and reports its failure, unlike the
// mutation paths which tolerate one.
func (e *Engine) Sync(ctx context.Context, customerID string) (*View, error) {
	st, err := e.load(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return e.syncState(ctx, customerID, st, false)
}

// ApplyCode submits a discount code against the remote cart. A code the
// remote reports as inapplicable is reverted and rejected; a successful
// application is recorded and re-applied on every later reconciliation.
func (e *Engine) ApplyCode(ctx context.Context, customerID, code string) (*View, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCode, "discount code is required")
	}

	st, err := e.load(ctx, customerID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	empty := len(st.lines) == 0
	remoteID := st.remoteID
	st.mu.Unlock()
	if empty {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot apply a code to an empty cart")
	}

	if remoteID == "" {
		if _, err := e.syncState(ctx, customerID, st, false); err != nil {
			return nil, err
		}
		st.mu.Lock()
		remoteID = st.remoteID
		st.mu.Unlock()
	}

	result, err := e.remote.SetDiscountCodes(ctx, remoteID, []string{code})
	if err != nil {
		return nil, err
	}
	if !codeApplicable(result.Codes, code) {
		if _, revertErr := e.remote.SetDiscountCodes(ctx, remoteID, nil); revertErr != nil {
			e.logger.Warn(e.logger.WithCustomerID(ctx, customerID), "failed to revert inapplicable discount code")
		}
		return nil, pkgerrors.New(pkgerrors.CodeNotApplicable, fmt.Sprintf("code %q does not apply to the current cart", code))
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	st.code = code
	st.cost = &result.Cost
	if err := e.persistLocked(ctx, customerID, st); err != nil {
		return nil, err
	}
	return e.viewLocked(st), nil
}

// RemoveCode clears the applied discount code.
func (e *Engine) RemoveCode(ctx context.Context, customerID string) (*View, error) {
	st, err := e.load(ctx, customerID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	remoteID := st.remoteID
	hadCode := st.code != ""
	st.mu.Unlock()

	if hadCode && remoteID != "" {
		result, err := e.remote.SetDiscountCodes(ctx, remoteID, nil)
		if err != nil {
			return nil, err
		}
		st.mu.Lock()
		st.cost = &result.Cost
		st.mu.Unlock()
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	st.code = ""
	if err := e.persistLocked(ctx, customerID, st); err != nil {
		return nil, err
	}
	return e.viewLocked(st), nil
}

// syncState runs one full-replace reconciliation. tolerant mutation paths
// swallow the sync error into the Stale flag; the explicit Sync operation
// propagates it.
func (e *Engine) syncState(ctx context.Context, customerID string, st *state, tolerant bool) (*View, error) {
	st.mu.Lock()
	st.seqIssued++
	seq := st.seqIssued
	remoteID := st.remoteID
	code := st.code
	snapshot := make([]Line, 0, len(st.lines))
	for _, line := range st.lines {
		snapshot = append(snapshot, line)
	}
	st.mu.Unlock()

	ctx = e.logger.WithSyncSeq(e.logger.WithCustomerID(ctx, customerID), seq)
	started := time.Now()
	result, syncErr := e.reconcile(ctx, remoteID, snapshot, code)
	e.metrics.ObserveSync(result.outcome, time.Since(started))

	st.mu.Lock()
	defer st.mu.Unlock()

	if seq <= st.seqApplied {
		e.metrics.IncStaleDrop()
		e.logger.Warn(ctx, "discarding out-of-order sync response")
		return e.viewLocked(st), nil
	}

	if result.outcome != outcomeFailure {
		st.seqApplied = seq
		st.remoteID = result.remoteID
		st.cost = result.cost
		if result.codeDropped && st.code == code {
			st.code = ""
			e.logger.Warn(ctx, "applied discount code no longer valid, removed")
		}
		for key, variantID := range result.resolved {
			if line, ok := st.lines[key]; ok && line.VariantID == "" {
				line.VariantID = variantID
				line.Unresolved = false
				st.lines[key] = line
			}
		}
		for key := range result.unresolved {
			if line, ok := st.lines[key]; ok {
				line.Unresolved = true
				st.lines[key] = line
			}
		}
		if err := e.persistLocked(ctx, customerID, st); err != nil {
			e.logger.Error(ctx, "failed to persist reconciled cart", err)
		}
	}

	view := e.viewLocked(st)
	if syncErr != nil {
		view.Stale = result.cost == nil
		if tolerant {
			e.logger.Warn(e.logger.WithField(ctx, "sync_error", syncErr.Error()), "cart sync degraded, serving local totals")
			return view, nil
		}
		return view, syncErr
	}
	return view, nil
}

type syncResult struct {
	remoteID    string
	cost        *remotecart.Cost
	resolved    map[string]string
	unresolved  map[string]struct{}
	codeDropped bool
	outcome     string
}

// reconcile performs the remote full-replace: resolve variants, clear every
// remote line, re-add the local set, and re-apply the discount code. Lines
// whose variants cannot be resolved are skipped and flagged rather than
// failing the run.
func (e *Engine) reconcile(ctx context.Context, remoteID string, lines []Line, code string) (*syncResult, error) {
	result := &syncResult{
		remoteID:   remoteID,
		resolved:   make(map[string]string),
		unresolved: make(map[string]struct{}),
	}

	if len(lines) == 0 {
		result.remoteID = ""
		result.outcome = outcomeEmpty
		return result, nil
	}

	var resolveErr error
	inputs := make([]remotecart.LineInput, 0, len(lines))
	for _, line := range lines {
		variantID := line.VariantID
		if variantID == "" {
			id, err := e.catalog.LookupVariant(ctx, line.Handle)
			if err != nil {
				resolveErr = multierr.Append(resolveErr, fmt.Errorf("line %s: %w", line.Key, err))
				result.unresolved[line.Key] = struct{}{}
				continue
			}
			variantID = id
			result.resolved[line.Key] = id
		}
		inputs = append(inputs, remotecart.LineInput{VariantID: variantID, Quantity: line.Quantity})
	}
	if len(inputs) == 0 {
		result.outcome = outcomeFailure
		return result, pkgerrors.Wrap(pkgerrors.CodeVariantResolution, resolveErr, "no cart line could be resolved")
	}

	if result.remoteID == "" {
		id, err := e.remote.Create(ctx)
		if err != nil {
			result.outcome = outcomeFailure
			return result, pkgerrors.Wrap(pkgerrors.CodeSyncFailed, err, "create remote cart")
		}
		result.remoteID = id
	}

	existing, err := e.remote.ListLines(ctx, result.remoteID)
	if err != nil {
		result.outcome = outcomeFailure
		return result, pkgerrors.Wrap(pkgerrors.CodeSyncFailed, err, "list remote lines")
	}
	if err := e.remote.RemoveLines(ctx, result.remoteID, existing); err != nil {
		result.outcome = outcomeFailure
		return result, pkgerrors.Wrap(pkgerrors.CodeSyncFailed, err, "clear remote lines")
	}

	added, err := e.remote.AddLines(ctx, result.remoteID, inputs)
	if err != nil {
		result.outcome = outcomeFailure
		return result, pkgerrors.Wrap(pkgerrors.CodeSyncFailed, err, "replace remote lines")
	}
	result.cost = &added.Cost

	if code != "" {
		discount, err := e.remote.SetDiscountCodes(ctx, result.remoteID, []string{code})
		switch {
		case err != nil:
			result.codeDropped = true
		case !codeApplicable(discount.Codes, code):
			result.codeDropped = true
			if _, revertErr := e.remote.SetDiscountCodes(ctx, result.remoteID, nil); revertErr != nil {
				e.logger.Warn(ctx, "failed to revert inapplicable discount code during sync")
			}
		default:
			result.cost = &discount.Cost
		}
	}

	if len(result.unresolved) > 0 {
		result.outcome = outcomePartial
		return result, pkgerrors.Wrap(pkgerrors.CodeVariantResolution, resolveErr, "some cart lines could not be resolved")
	}
	result.outcome = outcomeSuccess
	return result, nil
}

func codeApplicable(codes []remotecart.DiscountCode, code string) bool {
	for _, dc := range codes {
		if strings.EqualFold(dc.Code, code) && dc.Applicable {
			return true
		}
	}
	return false
}

func (e *Engine) state(customerID string) *state {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.states[customerID]
	if !ok {
		st = &state{lines: make(map[string]Line)}
		e.states[customerID] = st
	}
	return st
}

// load hydrates per-customer state from the durable cache, falling back to
// the shared store when this gateway has never seen the customer before.
func (e *Engine) load(ctx context.Context, customerID string) (*state, error) {
	if customerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "cart operations require a signed-in customer")
	}

	st := e.state(customerID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.loaded {
		return st, nil
	}

	raw, err := e.cache.Get(ctx, linesKey(customerID))
	switch {
	case err == nil:
		if err := json.Unmarshal([]byte(raw), &st.lines); err != nil {
			e.logger.Warn(e.logger.WithCustomerID(ctx, customerID), "corrupt cached cart, starting empty")
			st.lines = make(map[string]Line)
		}
	case stdErrors.Is(err, storage.ErrNotFound):
		e.hydrateFromSharedLocked(ctx, customerID, st)
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read cart cache")
	}

	if id, err := e.cache.Get(ctx, remoteIDKey(customerID)); err == nil {
		st.remoteID = id
	}
	if code, err := e.cache.Get(ctx, codeKey(customerID)); err == nil {
		st.code = code
	}

	st.loaded = true
	return st, nil
}

func (e *Engine) hydrateFromSharedLocked(ctx context.Context, customerID string, st *state) {
	records, err := e.shared.List(ctx, sharedstore.CartNamespace(customerID))
	if err != nil {
		e.logger.Warn(e.logger.WithCustomerID(ctx, customerID), "shared store unavailable during hydration, starting empty")
		return
	}
	for key, value := range records {
		var line Line
		if err := json.Unmarshal([]byte(value), &line); err != nil {
			continue
		}
		if line.Key == "" {
			line.Key = key
		}
		st.lines[line.Key] = line
	}
}

// persistLocked writes the cart snapshot through to the durable cache. The
// caller holds st.mu.
func (e *Engine) persistLocked(ctx context.Context, customerID string, st *state) error {
	payload, err := json.Marshal(st.lines)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart snapshot")
	}
	if err := e.cache.Set(ctx, linesKey(customerID), string(payload)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist cart snapshot")
	}

	if st.remoteID == "" {
		if err := e.cache.Delete(ctx, remoteIDKey(customerID)); err != nil && !stdErrors.Is(err, storage.ErrNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear remote cart id")
		}
	} else if err := e.cache.Set(ctx, remoteIDKey(customerID), st.remoteID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist remote cart id")
	}

	if st.code == "" {
		if err := e.cache.Delete(ctx, codeKey(customerID)); err != nil && !stdErrors.Is(err, storage.ErrNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear discount code")
		}
	} else if err := e.cache.Set(ctx, codeKey(customerID), st.code); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist discount code")
	}
	return nil
}

func (e *Engine) shareLine(ctx context.Context, customerID string, line Line) {
	payload, err := json.Marshal(line)
	if err != nil {
		return
	}
	if err := e.shared.Write(ctx, sharedstore.CartNamespace(customerID), line.Key, string(payload)); err != nil {
		e.logger.Warn(e.logger.WithProductKey(e.logger.WithCustomerID(ctx, customerID), line.Key), "shared store write failed")
	}
}

func (e *Engine) unshareLine(ctx context.Context, customerID, key string) {
	if err := e.shared.Delete(ctx, sharedstore.CartNamespace(customerID), key); err != nil {
		e.logger.Warn(e.logger.WithProductKey(e.logger.WithCustomerID(ctx, customerID), key), "shared store delete failed")
	}
}

// viewLocked renders totals. The caller holds st.mu.
func (e *Engine) viewLocked(st *state) *View {
	lines := make([]Line, 0, len(st.lines))
	for _, line := range st.lines {
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Key < lines[j].Key })

	subtotal := Subtotal(lines)
	view := &View{
		Lines:        lines,
		Subtotal:     subtotal.StringFixed(2),
		Discount:     "0.00",
		Total:        subtotal.StringFixed(2),
		AppliedCode:  st.code,
		RemoteCartID: st.remoteID,
	}
	for _, line := range lines {
		if line.Currency != "" {
			view.Currency = line.Currency
			break
		}
	}
	if st.cost != nil {
		view.Total = st.cost.Total.Amount
		view.Discount = discountBetween(st.cost.Subtotal.Amount, st.cost.Total.Amount).StringFixed(2)
		if st.cost.Total.CurrencyCode != "" {
			view.Currency = st.cost.Total.CurrencyCode
		}
	} else if len(lines) > 0 {
		view.Stale = true
	}
	return view
}

func linesKey(customerID string) string    { return "cart:" + customerID + ":lines" }
func remoteIDKey(customerID string) string { return "cart:" + customerID + ":remote_id" }
func codeKey(customerID string) string     { return "cart:" + customerID + ":code" }
