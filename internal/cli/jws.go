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
	"bytes"
	"fmt"

	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwa"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwk"
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jws"
	"github.com/spf13/cobra"
)

func newJWSCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jws",
		Short: "Sign and verify JSON Web Signatures",
	}
	cmd.AddCommand(newJWSSignCmd(a), newJWSVerifyCmd(a))
	return cmd
}

// signatureAlgorithm resolves an --alg flag against jose.signature_algorithm.
// An empty result selects the algorithm from the key.
func (a *app) signatureAlgorithm(flag string) (jwa.SignatureAlgorithm, error) {
	name := flag
	if name == "" {
		name = a.cfg.JOSE.SignatureAlgorithm
	}
	if name == "" {
		return "", nil
	}
	return jwa.ParseSignatureAlgorithm(name)
}

func newJWSSignCmd(a *app) *cobra.Command {
	var (
		kf        keyFlags
		alg       string
		in        string
		cty       string
		typ       string
		json      bool
		flattened bool
		detached  bool
		unencoded bool
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign content",
		Long: `Sign content read from --in or standard input. The algorithm is
taken from --alg, jose.signature_algorithm, the JWK "alg" or the key type,
in that order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readInput(cmd, in)
			if err != nil {
				return err
			}
			key, err := a.loadKey(&kf)
			if err != nil {
				return err
			}
			sigAlg, err := a.signatureAlgorithm(alg)
			if err != nil {
				return err
			}

			opts := []jws.Option{jws.WithLogger(a.log)}
			if sigAlg != "" {
				opts = append(opts, jws.WithAlgorithm(sigAlg))
			}
			if cty != "" {
				opts = append(opts, jws.WithContentType(cty))
			}
			if typ != "" {
				opts = append(opts, jws.WithType(typ))
			}
			if detached {
				opts = append(opts, jws.WithDetached())
			}
			if unencoded {
				opts = append(opts, jws.WithUnencodedPayload())
			}
			if flattened {
				json = true
				opts = append(opts, jws.WithFlattened())
			}

			var token string
			if json {
				token, err = jws.SignJSON([]*jwk.JWK{key}, payload, opts...)
			} else {
				token, err = jws.Sign(key, payload, opts...)
			}
			if err != nil {
				return fmt.Errorf("signing failed: %w", err)
			}
			return a.printer.PrintToken("jws", token)
		},
	}
	addKeyFlags(cmd, &kf, "signing key")
	cmd.Flags().StringVar(&alg, "alg", "", "signature algorithm")
	cmd.Flags().StringVar(&in, "in", "", "input file (default: standard input)")
	cmd.Flags().StringVar(&cty, "cty", "", "content type header")
	cmd.Flags().StringVar(&typ, "typ", "", "type header")
	cmd.Flags().BoolVar(&json, "json", false, "use the general JSON serialization")
	cmd.Flags().BoolVar(&flattened, "flattened", false, "use the flattened JSON serialization")
	cmd.Flags().BoolVar(&detached, "detached", false, "omit the payload from the output")
	cmd.Flags().BoolVar(&unencoded, "unencoded", false, "do not base64url encode the payload (b64=false)")
	return cmd
}

func newJWSVerifyCmd(a *app) *cobra.Command {
	var (
		kf      keyFlags
		alg     string
		in      string
		payload string
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a JWS and print its payload",
		Long: `Verify a compact or JSON serialized JWS read from --in or standard
input. Detached content is supplied with --payload. Without --key or --kid
the "kid" header selects the key from the key store. Algorithms other than
the key's own must be listed in jose.allowed_signature_algorithms.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readInput(cmd, in)
			if err != nil {
				return err
			}
			content = bytes.TrimSpace(content)

			if kf.path == "" && kf.kid == "" {
				h, err := jws.PeekHeaders(string(content))
				if err != nil {
					return fmt.Errorf("a key is required: use --key or --kid")
				}
				kf.kid = h.KeyID()
			}
			key, err := a.loadKey(&kf)
			if err != nil {
				return err
			}

			opts := []jws.Option{jws.WithLogger(a.log)}
			if alg != "" {
				sigAlg, err := jwa.ParseSignatureAlgorithm(alg)
				if err != nil {
					return err
				}
				opts = append(opts, jws.WithAlgorithm(sigAlg))
			}
			allowed, err := a.cfg.JOSE.AllowedSignatures()
			if err != nil {
				return err
			}
			if len(allowed) > 0 {
				opts = append(opts, jws.WithAllowedAlgorithms(allowed...))
			}
			if payload != "" {
				detached, err := readInput(cmd, payload)
				if err != nil {
					return err
				}
				opts = append(opts, jws.WithDetachedPayload(detached))
			}

			out, err := jws.Verify(key, content, opts...)
			if err != nil {
				return fmt.Errorf("verification failed: %w", err)
			}
			return a.printer.PrintPayload(out)
		},
	}
	addKeyFlags(cmd, &kf, "verification key")
	cmd.Flags().StringVar(&alg, "alg", "", "expected signature algorithm")
	cmd.Flags().StringVar(&in, "in", "", "input file (default: standard input)")
	cmd.Flags().StringVar(&payload, "payload", "", "detached payload file")
	return cmd
}
