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
	"github.com/jeremyhahn/go-trustkit/pkg/encoding/jwe"
	"github.com/spf13/cobra"
)

func newJWECmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jwe",
		Short: "Encrypt and decrypt JSON Web Encryption objects",
	}
	cmd.AddCommand(newJWEEncryptCmd(a), newJWEDecryptCmd(a))
	return cmd
}

func newJWEEncryptCmd(a *app) *cobra.Command {
	var (
		kf        keyFlags
		alg       string
		enc       string
		password  string
		in        string
		cty       string
		typ       string
		zip       bool
		json      bool
		flattened bool
	)
	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt content for a key or password",
		Long: `Encrypt content read from --in or standard input.

The recipient is a key (--key or --kid) or a password (--password, PBES2).
Without --alg the key management algorithm comes from the JWK "alg", the
configured jose.key_algorithm when it suits the key, or a default for the
key type. Compact serialization is the default; --json selects the general
JSON form and --flattened the flattened form.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plaintext, err := readInput(cmd, in)
			if err != nil {
				return err
			}

			contentAlg, err := a.contentAlgorithm(enc)
			if err != nil {
				return err
			}

			opts := []jwe.Option{jwe.WithLogger(a.log)}
			compress := a.cfg.JOSE.Compression
			if cmd.Flags().Changed("zip") {
				compress = zip
			}
			if compress {
				opts = append(opts, jwe.WithCompression())
			}
			if cty != "" {
				opts = append(opts, jwe.WithContentType(cty))
			}
			if typ != "" {
				opts = append(opts, jwe.WithType(typ))
			}
			if flattened {
				json = true
				opts = append(opts, jwe.WithFlattened())
			}

			var provider jwe.KeyEncryptionProvider
			if password != "" {
				keyAlg := jwe.DefaultPasswordAlgorithm
				if alg != "" {
					if keyAlg, err = jwa.ParseKeyAlgorithm(alg); err != nil {
						return err
					}
				}
				provider, err = jwe.NewPBES2KeyEncryption([]byte(password), keyAlg, a.cfg.JOSE.PBES2Iterations)
				if err != nil {
					return err
				}
			} else {
				key, err := a.loadKey(&kf)
				if err != nil {
					return err
				}
				keyAlg := jwa.KeyAlgorithm(alg)
				if keyAlg == "" {
					if keyAlg, err = defaultKeyAlgorithm(key, jwa.KeyAlgorithm(a.cfg.JOSE.KeyAlgorithm)); err != nil {
						return err
					}
				}
				if provider, err = jwe.NewKeyEncryptionProvider(key, keyAlg); err != nil {
					return err
				}
				if key.Kid != "" {
					opts = append(opts, jwe.WithKeyID(key.Kid))
				}
			}

			encryption, err := jwe.NewEncryption(provider, contentAlg, opts...)
			if err != nil {
				return err
			}
			if json {
				out, err := encryption.EncryptJSON(plaintext)
				if err != nil {
					return err
				}
				return a.printer.PrintToken("jwe", string(out))
			}
			token, err := encryption.Encrypt(plaintext)
			if err != nil {
				return err
			}
			return a.printer.PrintToken("jwe", token)
		},
	}
	addKeyFlags(cmd, &kf, "recipient key")
	cmd.Flags().StringVar(&alg, "alg", "", "key management algorithm")
	cmd.Flags().StringVar(&enc, "enc", "", "content encryption algorithm (default: jose.content_algorithm)")
	cmd.Flags().StringVar(&password, "password", "", "encrypt with a password (PBES2)")
	cmd.Flags().StringVar(&in, "in", "", "input file (default: standard input)")
	cmd.Flags().StringVar(&cty, "cty", "", "content type header")
	cmd.Flags().StringVar(&typ, "typ", "", "type header")
	cmd.Flags().BoolVar(&zip, "zip", false, "DEFLATE the content before encryption")
	cmd.Flags().BoolVar(&json, "json", false, "use the general JSON serialization")
	cmd.Flags().BoolVar(&flattened, "flattened", false, "use the flattened JSON serialization")
	return cmd
}

// contentAlgorithm resolves the --enc flag against configuration. An empty
// result lets the engine choose from CPU support.
func (a *app) contentAlgorithm(flag string) (jwa.ContentAlgorithm, error) {
	name := flag
	if name == "" {
		name = a.cfg.JOSE.ContentAlgorithm
	}
	if name == "" {
		return "", nil
	}
	return jwa.ParseContentAlgorithm(name)
}

func newJWEDecryptCmd(a *app) *cobra.Command {
	var (
		kf       keyFlags
		password string
		in       string
	)
	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt a JWE",
		Long: `Decrypt a compact or JSON serialized JWE read from --in or standard
input. With neither a key nor a password, the "kid" header selects the key
from the key store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readInput(cmd, in)
			if err != nil {
				return err
			}
			content = bytes.TrimSpace(content)
			opts := []jwe.Option{
				jwe.WithLogger(a.log),
				jwe.WithMaxPBES2Iterations(a.cfg.JOSE.PBES2MaxIterations),
			}

			var plaintext []byte
			switch {
			case password != "":
				plaintext, err = jwe.DecryptWithPassword([]byte(password), content, opts...)
			case kf.path != "" || kf.kid != "":
				key, lerr := a.loadKey(&kf)
				if lerr != nil {
					return lerr
				}
				plaintext, err = jwe.Decrypt(key, content, opts...)
			default:
				ks, kerr := a.keyStore()
				if kerr != nil {
					return kerr
				}
				defer func() { _ = ks.Close() }()
				plaintext, err = jwe.NewKeySetDecrypter(ks.Lookup, opts...).DecryptWithAutoKeyID(string(content))
			}
			if err != nil {
				return fmt.Errorf("decryption failed: %w", err)
			}
			return a.printer.PrintPayload(plaintext)
		},
	}
	addKeyFlags(cmd, &kf, "recipient private key")
	cmd.Flags().StringVar(&password, "password", "", "decrypt with a password (PBES2)")
	cmd.Flags().StringVar(&in, "in", "", "input file (default: standard input)")
	return cmd
}
