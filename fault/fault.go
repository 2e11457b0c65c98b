//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package fault defines well-known harness errors that carry a stable
// code and an optional resolution for the operator.
package fault

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/daos-stack/dharness/fault/code"
)

const (
	// ResolutionEmpty is equivalent to an empty string.
	ResolutionEmpty = ""
	// ResolutionUnknown indicates that there is no known
	// resolution for the fault.
	ResolutionUnknown = "no known resolution"

	// UnknownDomainStr is used when a fault has no domain.
	UnknownDomainStr = "unknown"
	// UnknownDescriptionStr is used when a fault has no description.
	UnknownDescriptionStr = "unknown fault"
)

// UnknownFault represents an unknown fault.
var UnknownFault = &Fault{
	Code:       code.Unknown,
	Resolution: ResolutionUnknown,
}

// Fault represents a well-known error specific to a domain,
// along with an optional potential resolution for the error.
//
// It implements the error interface and can be used
// interchangeably with regular "dumb" errors.
type Fault struct {
	Domain      string    `json:"-"`
	Code        code.Code `json:"code"`
	Description string    `json:"description"`
	Reasons     []string  `json:"reasons,omitempty"`
	Resolution  string    `json:"resolution"`
}

func sanitizeDomain(inDomain string) string {
	if inDomain == "" {
		return UnknownDomainStr
	}
	// sanitize the domain to ensure grep friendliness
	return strings.Join(strings.Fields(strings.Replace(inDomain, ":", " ", -1)), "_")
}

func (f *Fault) Error() string {
	desc := f.Description
	if desc == "" {
		desc = UnknownDescriptionStr
	}
	if len(f.Reasons) > 0 {
		desc = fmt.Sprintf("%s: %s", desc, strings.Join(f.Reasons, ", "))
	}
	return fmt.Sprintf("%s: code = %d description = %q", sanitizeDomain(f.Domain), f.Code, desc)
}

// Equals attempts to compare the given error to this one. If they both
// resolve to the same fault code, then they are considered equivalent.
func (f *Fault) Equals(raw error) bool {
	other, ok := errors.Cause(raw).(*Fault)
	if !ok {
		return false
	}
	return f.Code == other.Code
}

// Is allows a Fault to be matched with errors.Is on code equality.
func (f *Fault) Is(target error) bool {
	other, ok := target.(*Fault)
	if !ok {
		return false
	}
	return f.Code == other.Code
}

// WithReason returns a copy of the fault with an additional reason.
func (f *Fault) WithReason(format string, args ...interface{}) *Fault {
	nf := *f
	nf.Reasons = append(append([]string{}, f.Reasons...), fmt.Sprintf(format, args...))
	return &nf
}

// New creates a fault for the given domain and code.
func New(domain string, c code.Code, desc, res string) *Fault {
	return &Fault{
		Domain:      domain,
		Code:        c,
		Description: desc,
		Resolution:  res,
	}
}

// ShowResolutionFor attempts to return the resolution string for the
// given error. If the error is not a fault or does not have a
// resolution set, then the string value of ResolutionUnknown
// is returned.
func ShowResolutionFor(raw error) string {
	fmtStr := "%s: code = %d resolution = %q"

	f, ok := errors.Cause(raw).(*Fault)
	if !ok {
		return fmt.Sprintf(fmtStr, UnknownDomainStr, code.Unknown, ResolutionUnknown)
	}
	if f.Resolution == ResolutionEmpty {
		return fmt.Sprintf(fmtStr, sanitizeDomain(f.Domain), f.Code, ResolutionUnknown)
	}
	return fmt.Sprintf(fmtStr, sanitizeDomain(f.Domain), f.Code, f.Resolution)
}

// HasResolution indicates whether or not the error has a resolution
// defined.
func HasResolution(raw error) bool {
	f, ok := errors.Cause(raw).(*Fault)
	return ok && f.Resolution != ResolutionEmpty
}

// IsFaultCode indicates whether or not the error is a fault with the
// given code.
func IsFaultCode(raw error, c code.Code) bool {
	f, ok := errors.Cause(raw).(*Fault)
	return ok && f.Code == c
}

// CodeOf returns the fault code of the error, or code.Unknown.
func CodeOf(raw error) code.Code {
	if f, ok := errors.Cause(raw).(*Fault); ok {
		return f.Code
	}
	return code.Unknown
}
