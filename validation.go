package ethercat

import "errors"

// Validator accumulates validation errors across several checks on a
// frame or PDU so callers can run a batch of ValidateSize-style methods
// and inspect the combined result once. Mirrors the accumulator the
// teacher uses for its own frame validation.
type Validator struct {
	allowMultiErrs bool
	accum          []error
}

// AllowMultiErrors configures the Validator to accumulate every error
// passed to it instead of discarding all but the first.
func (v *Validator) AllowMultiErrors(allow bool) { v.allowMultiErrs = allow }

// ResetErr clears all accumulated errors, readying the Validator for reuse.
func (v *Validator) ResetErr() {
	v.accum = v.accum[:0]
}

// Err returns the accumulated validation result: nil if none, the single
// error if only one was recorded, or an errors.Join of all of them when
// AllowMultiErrors was set.
func (v *Validator) Err() error {
	if len(v.accum) == 1 {
		return v.accum[0]
	} else if len(v.accum) == 0 {
		return nil
	}
	return errors.Join(v.accum...)
}

func (v *Validator) gotErr(err error) {
	if err == nil {
		return
	}
	if len(v.accum) != 0 && !v.allowMultiErrs {
		return
	}
	v.accum = append(v.accum, err)
}

// AddError records a validation failure found by a caller outside this
// package (frame wrapper types in ethernet and pdu call this from their
// own ValidateSize methods).
func (v *Validator) AddError(err error) { v.gotErr(err) }
