package types

import "errors"

// Store is the transactional persistence contract for the expression
// ledger. Backends attach to a data directory, serve reads and atomic
// multi-row writes, and detach when done.
//
// Store enforces the structural invariants that live naturally in the
// data layer: antecedent and label targets must belong to the same
// chronicle, tip extension is optimistic-concurrency controlled, version
// plus dependency plus usage rows are written in one transaction, and a
// referencer's outgoing usage set is replaced atomically. Graph-level
// concerns (cycle detection, impact analysis) belong to the ledger
// service layered on top.
type Store interface {
	// Attach initializes the backend from config. Returns
	// ErrAlreadyAttached when called twice.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent. After Detach all
	// operations return ErrDetached.
	Detach() error

	// CreateVersion appends an immutable version together with its
	// dependency rows and its outgoing usage entries, in one
	// transaction. When a version with the same content hash and the
	// same antecedent already exists in the chronicle, the existing
	// version is returned and nothing is written. Returns ErrConflict
	// when another version already extends the requested antecedent,
	// ErrWrongChronicle when the antecedent belongs elsewhere, and
	// ErrNotFound when the antecedent or branch source does not exist.
	CreateVersion(v *ExpressionVersion, deps []Dependency, usages []Usage) (*ExpressionVersion, error)

	// GetVersion retrieves a version by id. Returns ErrNotFound if absent.
	GetVersion(versionID string) (*ExpressionVersion, error)

	// ListVersions returns all versions of a chronicle, oldest first.
	ListVersions(chronicleID string) ([]*ExpressionVersion, error)

	// GetLabel returns the current label row. Returns ErrLabelNotFound
	// if the label has never been assigned.
	GetLabel(chronicleID, labelName string) (*Label, error)

	// SetLabel atomically points a label at a version in the same
	// chronicle, creating the label on first assignment. Returns
	// ErrWrongChronicle when the version belongs to another chronicle.
	SetLabel(chronicleID, labelName, versionID string) (*Label, error)

	// ListLabels returns all labels of a chronicle.
	ListLabels(chronicleID string) ([]*Label, error)

	// ListDependencies returns a version's extracted dependency set.
	ListDependencies(versionID string) ([]Dependency, error)

	// UsageByVersion returns all usage entries pinned to a version.
	UsageByVersion(versionID string) ([]Usage, error)

	// UsageByLabel returns all usage entries bound to a (chronicle,
	// label) pointer.
	UsageByLabel(chronicleID, labelName string) ([]Usage, error)

	// AddUsage records a single usage entry for an external referencer.
	AddUsage(u Usage) error

	// ReplaceUsage atomically swaps the outgoing usage set of one
	// referencer version: existing entries for (referencerType,
	// referencerID, referencerVersionID) are removed and the given
	// entries inserted in one transaction. A partial replacement is
	// never observable.
	ReplaceUsage(referencerType, referencerID, referencerVersionID string, usages []Usage) error

	// RemoveUsage deletes every usage entry recorded by a referencer,
	// across all of its versions.
	RemoveUsage(referencerType, referencerID string) error

	// RetireChronicle bulk-deletes a chronicle's versions, labels,
	// dependencies, and outgoing usage entries. Returns
	// ErrChronicleInUse while any referencer outside the chronicle
	// still depends on one of its versions or labels.
	RetireChronicle(chronicleID string) error
}

// Store lifecycle errors.
var (
	ErrDetached        = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
)

// Ledger operation errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrLabelNotFound   = errors.New("label not found")
	ErrConflict        = errors.New("version tip conflict")
	ErrWrongChronicle  = errors.New("version belongs to a different chronicle")
	ErrChronicleInUse  = errors.New("chronicle still has referencers")
	ErrInvalidID       = errors.New("invalid id")
	ErrInvalidData     = errors.New("invalid data")
	ErrInvalidRef      = errors.New("invalid expression reference")
)
