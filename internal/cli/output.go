// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-trustkit.
//
// go-trustkit is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwt"
	"github.com/jeremyhahn/go-trustkit/pkg/sts"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	if p.format == OutputFormatJSON {
		return p.printJSON(map[string]interface{}{
			"status":  "success",
			"message": message,
		})
	}
	_, err := fmt.Fprintln(p.writer, message)
	return err
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	if p.format == OutputFormatJSON {
		return p.printJSON(map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
	}
	_, werr := fmt.Fprintf(p.writer, "Error: %v\n", err)
	return werr
}

// PrintToken prints a serialized JOSE object. kind names the JSON member,
// for example "jwe" or "jwt".
func (p *Printer) PrintToken(kind, token string) error {
	if p.format == OutputFormatJSON {
		return p.printJSON(map[string]interface{}{kind: token})
	}
	_, err := fmt.Fprintln(p.writer, token)
	return err
}

// PrintPayload prints decrypted or verified content. Text output writes the
// bytes unchanged.
func (p *Printer) PrintPayload(payload []byte) error {
	if p.format == OutputFormatJSON {
		return p.printJSON(map[string]interface{}{"payload": string(payload)})
	}
	_, err := p.writer.Write(payload)
	return err
}

// PrintJWK prints a JSON Web Key
func (p *Printer) PrintJWK(key *jwk.JWK) error {
	return p.printJSON(key)
}

// PrintKeySet prints a JWK Set
func (p *Printer) PrintKeySet(set *jwk.Set) error {
	return p.printJSON(set)
}

// PrintThumbprint prints an RFC 7638 thumbprint
func (p *Printer) PrintThumbprint(thumbprint string) error {
	return p.PrintToken("thumbprint", thumbprint)
}

// PrintPEM prints PEM encoded data
func (p *Printer) PrintPEM(data []byte) error {
	if p.format == OutputFormatJSON {
		return p.printJSON(map[string]interface{}{"pem": string(data)})
	}
	_, err := p.writer.Write(data)
	return err
}

// PrintIDList prints a list of identifiers such as key or token ids
func (p *Printer) PrintIDList(label string, ids []string) error {
	if p.format == OutputFormatJSON {
		if ids == nil {
			ids = []string{}
		}
		return p.printJSON(map[string]interface{}{label: ids})
	}
	if len(ids) == 0 {
		_, err := fmt.Fprintf(p.writer, "No %s found\n", label)
		return err
	}
	fmt.Fprintf(p.writer, "%s:\n", strings.ToUpper(label[:1])+label[1:])
	for _, id := range ids {
		fmt.Fprintf(p.writer, "  - %s\n", id)
	}
	return nil
}

// PrintClaims prints a validated JWT
func (p *Printer) PrintClaims(tok *jwt.Token) error {
	if p.format == OutputFormatJSON {
		return p.printJSON(map[string]interface{}{
			"encrypted": tok.Encrypted,
			"claims":    tok.Claims,
		})
	}
	if tok.Encrypted {
		fmt.Fprintln(p.writer, "Encrypted: true")
	}
	return p.printJSON(tok.Claims)
}

// delegationResult is the outcome of sts delegate
type delegationResult struct {
	Allowed   bool   `json:"allowed"`
	Kind      string `json:"token_kind"`
	State     string `json:"token_state"`
	Principal string `json:"principal,omitempty"`
	AppliesTo string `json:"applies_to,omitempty"`
	TokenID   string `json:"token_id,omitempty"`
	Reason    string `json:"reason,omitempty"`

	CorrelationID string `json:"correlation_id,omitempty"`
}

// PrintDelegation prints a delegation decision
func (p *Printer) PrintDelegation(r *delegationResult) error {
	if p.format == OutputFormatJSON {
		return p.printJSON(r)
	}
	decision := "DENIED"
	if r.Allowed {
		decision = "ALLOWED"
	}
	fmt.Fprintf(p.writer, "Delegation: %s\n", decision)
	fmt.Fprintf(p.writer, "Token:      %s (%s)\n", r.Kind, r.State)
	if r.Principal != "" {
		fmt.Fprintf(p.writer, "Principal:  %s\n", r.Principal)
	}
	if r.AppliesTo != "" {
		fmt.Fprintf(p.writer, "AppliesTo:  %s\n", r.AppliesTo)
	}
	if r.TokenID != "" {
		fmt.Fprintf(p.writer, "Stored as:  %s\n", r.TokenID)
	}
	if r.Reason != "" {
		fmt.Fprintf(p.writer, "Reason:     %s\n", r.Reason)
	}
	if r.CorrelationID != "" {
		fmt.Fprintf(p.writer, "Request:    %s\n", r.CorrelationID)
	}
	return nil
}

// PrintSecurityToken prints a stored token
func (p *Printer) PrintSecurityToken(t *sts.SecurityToken) error {
	if p.format == OutputFormatJSON {
		return p.printJSON(t)
	}
	fmt.Fprintf(p.writer, "ID:        %s\n", t.ID)
	fmt.Fprintf(p.writer, "Kind:      %s\n", t.Kind)
	if t.Principal != "" {
		fmt.Fprintf(p.writer, "Principal: %s\n", t.Principal)
	}
	fmt.Fprintf(p.writer, "Created:   %s\n", t.Created.Format(time.RFC3339))
	if !t.Expires.IsZero() {
		fmt.Fprintf(p.writer, "Expires:   %s\n", t.Expires.Format(time.RFC3339))
	}
	_, err := fmt.Fprintf(p.writer, "\n%s\n", t.Token)
	return err
}

// printJSON prints data as JSON
func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
