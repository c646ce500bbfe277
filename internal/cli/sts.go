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
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/beevik/etree"
	"github.com/jeremyhahn/go-trustkit/pkg/adapters/logger"
	"github.com/jeremyhahn/go-trustkit/pkg/correlation"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
	"github.com/jeremyhahn/go-trustkit/pkg/sts"
	"github.com/jeremyhahn/go-trustkit/pkg/sts/delegation"
	"github.com/spf13/cobra"
)

func newSTSCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sts",
		Short: "Validate tokens and evaluate ActAs/OnBehalfOf delegation",
	}
	cmd.AddCommand(newSTSValidateCmd(a), newSTSDelegateCmd(a), newSTSTokensCmd(a))
	return cmd
}

// receivedTokenFlags select the token and the key used to validate JWTs.
type receivedTokenFlags struct {
	token  string
	jwtKey keyFlags
}

func (f *receivedTokenFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.token, "token", "", "token file: SAML assertion, UsernameToken or JWT (default: standard input)")
	cmd.Flags().StringVar(&f.jwtKey.path, "jwt-key", "", "key file used to verify JWT tokens")
	cmd.Flags().StringVar(&f.jwtKey.kid, "jwt-kid", "", "key store id used to verify JWT tokens")
}

// validatedToken reads and validates the received token.
func (a *app) validatedToken(cmd *cobra.Command, f *receivedTokenFlags) (*sts.ReceivedToken, error) {
	data, err := readInput(cmd, f.token)
	if err != nil {
		return nil, err
	}
	rt, err := sts.ParseReceivedToken(data)
	if err != nil {
		return nil, err
	}
	var key *jwk.JWK
	if f.jwtKey.path != "" || f.jwtKey.kid != "" {
		if key, err = a.loadKey(&f.jwtKey); err != nil {
			return nil, err
		}
	}
	a.tokenValidator(key).Validate(rt)
	return rt, nil
}

func newSTSValidateCmd(a *app) *cobra.Command {
	var f receivedTokenFlags
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a received token",
		Long: `Validate a SAML assertion, WS-Security UsernameToken or JWT and
print its state: VALID, INVALID, EXPIRED or NONE when the token type is
not recognised. Assertion lifetimes honour sts.clock_skew; UsernameTokens
are checked against sts.users.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.validatedToken(cmd, &f)
			if err != nil {
				return err
			}
			if a.printer.format == OutputFormatJSON {
				return a.printer.printJSON(map[string]string{
					"token_kind":  rt.Kind(),
					"token_state": rt.State().String(),
					"principal":   sts.PrincipalName(rt.Principal()),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token:     %s\n", rt.Kind())
			fmt.Fprintf(cmd.OutOrStdout(), "State:     %s\n", rt.State())
			if p := sts.PrincipalName(rt.Principal()); p != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Principal: %s\n", p)
			}
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newSTSDelegateCmd(a *app) *cobra.Command {
	var (
		f             receivedTokenFlags
		appliesTo     string
		principal     string
		hok           bool
		checkAudience bool
		store         bool
	)
	cmd := &cobra.Command{
		Use:   "delegate",
		Short: "Decide whether a token may be used for ActAs/OnBehalfOf",
		Long: `Validate the token and run it through the delegation handlers named
in sts.handlers. SAML bearer assertions are accepted by default; --hok adds
holder-of-key assertions. --check-audience requires the assertion or JWT
audience to contain the --applies-to address.

--applies-to is an address, an inline wsp:AppliesTo element, or a file
holding one.

Exits non-zero when delegation is denied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.validatedToken(cmd, &f)
			if err != nil {
				return err
			}
			address, err := appliesToAddress(appliesTo)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("check-audience") {
				checkAudience = a.cfg.STS.CheckAudienceRestriction
			}

			ts, closeStore, err := a.tokenStore()
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			params := &delegation.Parameters{
				Token:                rt,
				AppliesToAddress:     address,
				STSProperties:        a.stsProperties(),
				TokenStore:           ts,
				TokenPrincipal:       rt.Principal(),
				TokenRoles:           rt.Roles(),
				AdditionalProperties: map[string]any{correlation.PropertyKey: a.correlationID},
			}
			if principal != "" {
				params.Principal = sts.NamedPrincipal(principal)
			}

			result := &delegationResult{
				Kind:      rt.Kind(),
				State:     rt.State().String(),
				Principal: sts.PrincipalName(rt.Principal()),
				AppliesTo: address,

				CorrelationID: a.correlationID,
			}
			_, derr := a.delegationChain(hok, checkAudience).Delegate(params)
			switch {
			case derr == nil:
				result.Allowed = true
			case !errors.Is(derr, delegation.ErrDelegationDenied):
				return derr
			case rt.State() != sts.StateValid:
				result.Reason = "token failed validation"
			default:
				result.Reason = "no handler allowed the token"
			}

			if result.Allowed && store {
				st, err := sts.NewSecurityToken(rt)
				if err != nil {
					return err
				}
				if result.TokenID, err = ts.Add(st); err != nil {
					return fmt.Errorf("failed to store token: %w", err)
				}
				a.log.Info("delegated token stored", logger.String("id", result.TokenID))
			}
			if err := a.printer.PrintDelegation(result); err != nil {
				return err
			}
			return derr
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&appliesTo, "applies-to", "", "target service address or AppliesTo element")
	cmd.Flags().StringVar(&principal, "principal", "", "authenticated caller requesting delegation")
	cmd.Flags().BoolVar(&hok, "hok", false, "also accept holder-of-key SAML assertions")
	cmd.Flags().BoolVar(&checkAudience, "check-audience", false, "require the audience to match --applies-to")
	cmd.Flags().BoolVar(&store, "store", false, "save an allowed token in the token store")
	return cmd
}

// appliesToAddress resolves --applies-to. XML, inline or in a file, is
// read as an AppliesTo element; anything else is the address itself.
func appliesToAddress(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	data := []byte(value)
	if !strings.HasPrefix(value, "<") {
		// #nosec G304 - path is provided by the user
		content, err := os.ReadFile(value)
		if err != nil {
			return value, nil
		}
		data = content
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return "", fmt.Errorf("invalid AppliesTo: %w", err)
	}
	if doc.Root() == nil {
		return "", fmt.Errorf("invalid AppliesTo: no root element")
	}
	return sts.ExtractAddressFromAppliesTo(doc.Root()), nil
}

func newSTSTokensCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Inspect the STS token store",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored token ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, closeStore, err := a.tokenStore()
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()
			ids, err := ts.IDs()
			if err != nil {
				return err
			}
			return a.printer.PrintIDList("tokens", ids)
		},
	}

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Print a stored token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, closeStore, err := a.tokenStore()
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()
			t, err := ts.Get(args[0])
			if err != nil {
				return err
			}
			return a.printer.PrintSecurityToken(t)
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a stored token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, closeStore, err := a.tokenStore()
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()
			if err := ts.Remove(args[0]); err != nil {
				return err
			}
			return a.printer.PrintSuccess(fmt.Sprintf("Token %s removed", args[0]))
		},
	}

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete expired tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, closeStore, err := a.tokenStore()
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()
			n, err := ts.Purge()
			if err != nil {
				return err
			}
			return a.printer.PrintSuccess(fmt.Sprintf("Purged %d expired tokens", n))
		},
	}

	cmd.AddCommand(listCmd, getCmd, removeCmd, purgeCmd)
	return cmd
}
