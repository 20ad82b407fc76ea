package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mfolsen/brewstock/internal/domain"
	"github.com/mfolsen/brewstock/internal/idempotency"
	"github.com/mfolsen/brewstock/internal/mapping"
	"github.com/mfolsen/brewstock/pkg/signature"
)

// State identifies where an import attempt currently sits.
type State string

const (
	StateIdle            State = "idle"
	StateHeadersUploaded State = "headers_uploaded"
	StateMappingRequired State = "mapping_required"
	StateMappingResolved State = "mapping_resolved"
	StatePreviewReady    State = "preview_ready"
	StateCommitting      State = "committing"
	StateDone            State = "done"
	StateError           State = "error"
)

var (
	// ErrNoValidHeaders is reported when an upload yields no usable columns.
	ErrNoValidHeaders = errors.New("no valid headers found in file")
	// ErrAlreadyInProgress rejects a duplicate submission detected via the
	// ledger. It is a benign no-op, not a failure.
	ErrAlreadyInProgress = errors.New("an import with this content is already in progress")
	// ErrCommitInFlight rejects a second commit from the same session before
	// the first resolves.
	ErrCommitInFlight = errors.New("a commit is already in flight")
	// ErrRecentlyImported rejects a resubmission whose key completed within
	// the ledger TTL.
	ErrRecentlyImported = errors.New("this file was already imported recently")
	// ErrIncompleteMapping blocks confirmation until every required field is
	// mapped.
	ErrIncompleteMapping = errors.New("all required fields must be mapped")
)

// Backend is the server contract the orchestrator drives. Implementations
// are injected so the state machine can be exercised without a network.
type Backend interface {
	ExtractHeaders(ctx context.Context, userID uuid.UUID, file idempotency.FileInfo) ([]string, error)
	Preview(ctx context.Context, userID uuid.UUID, target domain.ImportTarget, file idempotency.FileInfo, m domain.FieldMapping) (domain.ImportPreview, error)
	Commit(ctx context.Context, userID uuid.UUID, target domain.ImportTarget, file idempotency.FileInfo, m domain.FieldMapping, key string) (domain.CommitResult, error)
	SyncMapping(ctx context.Context, userID uuid.UUID, target domain.ImportTarget, m domain.FieldMapping) error
}

// Orchestrator walks one import attempt through upload, mapping resolution,
// preview, and idempotent commit. It is an explicit state machine with no
// rendering coupling; one instance serves one user session at a time.
type Orchestrator struct {
	backend  Backend
	mappings *mapping.Store
	keys     *idempotency.Computer
	ledger   *idempotency.Ledger

	userID uuid.UUID
	target domain.ImportTarget

	mu       sync.Mutex
	state    State
	inFlight bool

	file      idempotency.FileInfo
	headers   []string
	sig       string
	mapped    domain.FieldMapping
	preview   *domain.ImportPreview
	commitKey string
	lastErr   error
}

// New creates an orchestrator for one user and import target.
func New(backend Backend, mappings *mapping.Store, keys *idempotency.Computer, ledger *idempotency.Ledger, userID uuid.UUID, target domain.ImportTarget) *Orchestrator {
	return &Orchestrator{
		backend:  backend,
		mappings: mappings,
		keys:     keys,
		ledger:   ledger,
		userID:   userID,
		target:   target,
		state:    StateIdle,
		mapped:   domain.FieldMapping{},
	}
}

// State returns the current machine state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Err returns the error that moved the machine into StateError, if any.
func (o *Orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// Headers returns the extracted column headers of the current file.
func (o *Orchestrator) Headers() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.headers))
	copy(out, o.headers)
	return out
}

// Mapping returns a copy of the working field mapping.
func (o *Orchestrator) Mapping() domain.FieldMapping {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mapped.Clone()
}

// Preview returns the most recent dry-run result, or nil.
func (o *Orchestrator) Preview() *domain.ImportPreview {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.preview
}

// UploadFile starts a new import attempt from Idle. Headers are extracted
// server-side; a previously saved mapping matching the file's header
// signature is adopted automatically when it is still complete, in which
// case the attempt runs straight through a silent mapping sync and preview.
// Otherwise the machine stops in MappingRequired with any partial prior
// mapping pre-filled.
func (o *Orchestrator) UploadFile(ctx context.Context, file idempotency.FileInfo) error {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return fmt.Errorf("cannot upload in state %s", o.state)
	}
	o.mu.Unlock()

	rawHeaders, err := o.backend.ExtractHeaders(ctx, o.userID, file)
	if err != nil {
		return o.fail(fmt.Errorf("header extraction failed: %w", err))
	}

	headers := make([]string, 0, len(rawHeaders))
	for _, header := range rawHeaders {
		if strings.TrimSpace(header) != "" {
			headers = append(headers, strings.TrimSpace(header))
		}
	}
	if len(headers) == 0 {
		return o.fail(ErrNoValidHeaders)
	}

	sig := signature.Normalize(headers)

	o.mu.Lock()
	o.file = file
	o.headers = headers
	o.sig = sig
	o.state = StateHeadersUploaded
	o.mu.Unlock()

	stored, found := o.mappings.Load(ctx, o.userID, sig)
	if found && mapping.IsComplete(o.target, headers, stored.Mapping) {
		o.mu.Lock()
		o.mapped = stored.Mapping.Clone()
		o.state = StateMappingResolved
		o.mu.Unlock()

		if err := o.backend.SyncMapping(ctx, o.userID, o.target, stored.Mapping); err != nil {
			log.Printf("[IMPORT] mapping sync failed, continuing: %v", err)
		}
		return o.runPreview(ctx)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if found {
		// Partial prior mapping seeds the manual step.
		o.mapped = stored.Mapping.Clone()
	} else {
		o.mapped = domain.FieldMapping{}
	}
	o.state = StateMappingRequired
	return nil
}

// AssignField maps a logical field to a header. A header may back at most
// one field; assigning it again moves it from its prior field.
func (o *Orchestrator) AssignField(fieldKey, header string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateMappingRequired {
		return fmt.Errorf("cannot assign fields in state %s", o.state)
	}
	if !o.knownFieldLocked(fieldKey) {
		return fmt.Errorf("unknown field %q for target %s", fieldKey, o.target)
	}
	if !o.knownHeaderLocked(header) {
		return fmt.Errorf("header %q not present in uploaded file", header)
	}

	for key, assigned := range o.mapped {
		if key != fieldKey && strings.EqualFold(strings.TrimSpace(assigned), strings.TrimSpace(header)) {
			delete(o.mapped, key)
		}
	}
	o.mapped[fieldKey] = header
	return nil
}

// ClearField unmaps a logical field.
func (o *Orchestrator) ClearField(fieldKey string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateMappingRequired {
		return fmt.Errorf("cannot clear fields in state %s", o.state)
	}
	delete(o.mapped, fieldKey)
	return nil
}

// ConfirmMapping validates completeness, persists the mapping for this
// header signature, mirrors it server-side, and runs the preview.
func (o *Orchestrator) ConfirmMapping(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateMappingRequired {
		o.mu.Unlock()
		return fmt.Errorf("cannot confirm mapping in state %s", o.state)
	}
	if !mapping.IsComplete(o.target, o.headers, o.mapped) {
		o.mu.Unlock()
		return ErrIncompleteMapping
	}
	userID, sig, headers, mapped := o.userID, o.sig, o.headers, o.mapped.Clone()
	o.state = StateMappingResolved
	o.mu.Unlock()

	if err := o.mappings.Save(ctx, userID, sig, mapped, headers); err != nil {
		log.Printf("[IMPORT] failed to save mapping locally, continuing: %v", err)
	}
	if err := o.backend.SyncMapping(ctx, userID, o.target, mapped); err != nil {
		log.Printf("[IMPORT] mapping sync failed, continuing: %v", err)
	}

	return o.runPreview(ctx)
}

// RetryPreview re-runs the dry run after a failed preview left the machine
// in MappingResolved, without redoing the mapping step.
func (o *Orchestrator) RetryPreview(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateMappingResolved {
		o.mu.Unlock()
		return fmt.Errorf("cannot retry preview in state %s", o.state)
	}
	o.mu.Unlock()

	return o.runPreview(ctx)
}

// runPreview submits a non-committing request. On failure the machine rolls
// back to MappingResolved so the completed steps are not redone.
func (o *Orchestrator) runPreview(ctx context.Context) error {
	o.mu.Lock()
	file, mapped := o.file, o.mapped.Clone()
	o.mu.Unlock()

	preview, err := o.backend.Preview(ctx, o.userID, o.target, file, mapped)
	if err != nil {
		o.mu.Lock()
		o.state = StateMappingResolved
		o.mu.Unlock()
		return fmt.Errorf("preview failed: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.preview = &preview
	o.state = StatePreviewReady
	return nil
}

// Commit confirms the previewed import. The computed idempotency key is
// checked against the ledger before submission; a pending entry rejects the
// attempt benignly and a done entry rejects a resubmit until it expires.
// Fallback keys are time-salted and skip the ledger check. Exactly one
// commit can be in flight per orchestrator.
func (o *Orchestrator) Commit(ctx context.Context) (domain.CommitResult, error) {
	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return domain.CommitResult{}, ErrCommitInFlight
	}
	if o.state != StatePreviewReady {
		o.mu.Unlock()
		return domain.CommitResult{}, fmt.Errorf("cannot commit in state %s", o.state)
	}
	o.inFlight = true
	file, mapped, userID, target := o.file, o.mapped.Clone(), o.userID, o.target
	o.mu.Unlock()

	key := o.keys.Compute(file, mapped, userID)

	entries := o.ledger.Read(ctx)
	if entry, ok := entries[key]; ok && !idempotency.IsFallback(key) {
		o.mu.Lock()
		o.inFlight = false
		o.mu.Unlock()
		if entry.Status == idempotency.StatusPending {
			return domain.CommitResult{}, ErrAlreadyInProgress
		}
		return domain.CommitResult{}, ErrRecentlyImported
	}
	if err := o.ledger.MarkPending(ctx, key); err != nil {
		log.Printf("[IMPORT] failed to record pending ledger entry, continuing: %v", err)
	}

	o.mu.Lock()
	o.commitKey = key
	o.state = StateCommitting
	o.mu.Unlock()

	result, err := o.backend.Commit(ctx, userID, target, file, mapped, key)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.inFlight = false

	if err != nil {
		if removeErr := o.ledger.Remove(ctx, key); removeErr != nil {
			log.Printf("[IMPORT] failed to clear ledger entry after failed commit: %v", removeErr)
		}
		o.lastErr = NormalizeServerError(err)
		o.state = StateError
		return domain.CommitResult{}, o.lastErr
	}

	if doneErr := o.ledger.MarkDone(ctx, key); doneErr != nil {
		log.Printf("[IMPORT] failed to mark ledger entry done: %v", doneErr)
	}
	o.resetTransientLocked()
	o.state = StateDone
	return result, nil
}

// Cancel resets the attempt to Idle, clearing transient state and any
// pending ledger entry. Cancelling while a commit is in flight is refused;
// the request runs to completion.
func (o *Orchestrator) Cancel(ctx context.Context) error {
	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return ErrCommitInFlight
	}
	key := o.commitKey
	o.resetTransientLocked()
	o.state = StateIdle
	o.lastErr = nil
	o.mu.Unlock()

	if key != "" {
		entries := o.ledger.Read(ctx)
		if entry, ok := entries[key]; ok && entry.Status == idempotency.StatusPending {
			if err := o.ledger.Remove(ctx, key); err != nil {
				log.Printf("[IMPORT] failed to clear pending ledger entry on cancel: %v", err)
			}
		}
	}
	return nil
}

func (o *Orchestrator) fail(err error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastErr = err
	o.state = StateError
	return err
}

func (o *Orchestrator) resetTransientLocked() {
	o.file = idempotency.FileInfo{}
	o.headers = nil
	o.sig = ""
	o.mapped = domain.FieldMapping{}
	o.preview = nil
	o.commitKey = ""
}

func (o *Orchestrator) knownFieldLocked(fieldKey string) bool {
	for _, field := range domain.FieldsFor(o.target) {
		if field.Key == fieldKey {
			return true
		}
	}
	return false
}

func (o *Orchestrator) knownHeaderLocked(header string) bool {
	for _, h := range o.headers {
		if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(header)) {
			return true
		}
	}
	return false
}
