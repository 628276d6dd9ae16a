package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for aggregate-kind and concurrency failures. Matched with
// errors.Is at the handler boundary.
var (
	// ErrAlreadyLoose — break attempted on a loose aggregate.
	ErrAlreadyLoose = errors.New("aggregate is already loose")
	// ErrNotLoose — loose-only operation applied to a sealed packet.
	ErrNotLoose = errors.New("aggregate is not loose")
	// ErrNoStockToBreak — break attempted with zero available packets.
	ErrNoStockToBreak = errors.New("no available packets to break")
	// ErrConcurrentModification — a compare-and-swap or versioned save lost
	// a race. The multi-write scope is rolled back; callers may retry.
	ErrConcurrentModification = errors.New("aggregate modified concurrently")
)

// InsufficientStockError reports a reserve/sell/return that exceeds the
// balance it draws from.
type InsufficientStockError struct {
	Barcode   string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock on %s: requested %d, available %d", e.Barcode, e.Requested, e.Available)
}

// VariantNotFoundError reports a break removal line naming a variant the
// packet composition does not carry.
type VariantNotFoundError struct {
	Barcode string
	Size    string
	Color   string
}

func (e *VariantNotFoundError) Error() string {
	return fmt.Sprintf("variant %s/%s not present in packet %s", e.Color, e.Size, e.Barcode)
}

// OverRequestedQuantityError reports a break removal line asking for more of
// a variant than one packet carries.
type OverRequestedQuantityError struct {
	Barcode   string
	Size      string
	Color     string
	Requested int
	PerPacket int
}

func (e *OverRequestedQuantityError) Error() string {
	return fmt.Sprintf("break of %s requests %d of %s/%s, packet carries %d",
		e.Barcode, e.Requested, e.Color, e.Size, e.PerPacket)
}

// CompositionInvariantError is raised when a composite save would persist an
// aggregate whose composition no longer sums to its item count. Always
// fatal, never auto-corrected.
type CompositionInvariantError struct {
	Barcode string
	Detail  string
}

func (e *CompositionInvariantError) Error() string {
	return fmt.Sprintf("composition invariant violated on %s: %s", e.Barcode, e.Detail)
}

// VariantShortfall is one unmet line of a return plan.
type VariantShortfall struct {
	Size      string `json:"size"`
	Color     string `json:"color"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
	Unmet     int    `json:"unmet"`
}

// PlanShortfallError aggregates every variant a return plan could not fully
// satisfy, so the caller sees the whole picture in one round trip instead of
// failing on the first insufficient variant.
type PlanShortfallError struct {
	Shortfalls []VariantShortfall
}

func (e *PlanShortfallError) Error() string {
	lines := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		lines = append(lines, fmt.Sprintf("%s/%s short %d (requested %d, available %d)",
			s.Color, s.Size, s.Unmet, s.Requested, s.Available))
	}
	return "return plan cannot be satisfied: " + strings.Join(lines, "; ")
}
