// Request signing for the upstream platform.
//
// DESIGN: The platform authenticates with draft-cavage HTTP signatures:
// an RSA-SHA256 signature over date, (request-target), host and, for bodied
// requests, content-length, content-type and x-content-sha256. The key id is
// tenancy/user/fingerprint from the credentials file.
package upstream

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ocigw/genai-gateway/internal/config"
)

// Signer signs upstream requests with the tenant's RSA key.
type Signer struct {
	keyID string
	key   *rsa.PrivateKey
}

// NewSigner builds a signer from credentials. The private key comes from
// key_content or, failing that, key_file.
func NewSigner(creds config.Credentials) (*Signer, error) {
	pemData := []byte(creds.KeyContent)
	if len(pemData) == 0 {
		data, err := os.ReadFile(creds.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("signer: read key: %w", err)
		}
		pemData = data
	}

	key, err := parsePrivateKey(pemData, creds.PassPhrase)
	if err != nil {
		return nil, err
	}

	return &Signer{
		keyID: creds.Tenancy + "/" + creds.User + "/" + creds.Fingerprint,
		key:   key,
	}, nil
}

// Sign adds the signature headers to req. body must be the exact payload
// that will be sent.
func (s *Signer) Sign(req *http.Request, body []byte) error {
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))

	headers := []string{"date", "(request-target)", "host"}
	if len(body) > 0 || req.Method == http.MethodPost || req.Method == http.MethodPut {
		digest := sha256.Sum256(body)
		req.Header.Set("X-Content-Sha256", base64.StdEncoding.EncodeToString(digest[:]))
		req.Header.Set("Content-Length", strconv.Itoa(len(body)))
		if req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", "application/json")
		}
		headers = append(headers, "content-length", "content-type", "x-content-sha256")
	}

	var signingLines []string
	for _, h := range headers {
		var value string
		switch h {
		case "(request-target)":
			target := req.URL.EscapedPath()
			if req.URL.RawQuery != "" {
				target += "?" + req.URL.RawQuery
			}
			value = strings.ToLower(req.Method) + " " + target
		case "host":
			value = req.URL.Host
		default:
			value = req.Header.Get(h)
		}
		signingLines = append(signingLines, h+": "+value)
	}

	digest := sha256.Sum256([]byte(strings.Join(signingLines, "\n")))
	signature, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return fmt.Errorf("signer: sign: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf(
		`Signature version="1",keyId="%s",algorithm="rsa-sha256",headers="%s",signature="%s"`,
		s.keyID, strings.Join(headers, " "), base64.StdEncoding.EncodeToString(signature)))
	return nil
}

// parsePrivateKey decodes a PEM-encoded RSA key in PKCS1 or PKCS8 form,
// decrypting legacy-encrypted blocks with the pass phrase when present.
func parsePrivateKey(pemData []byte, passPhrase string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("signer: no PEM block in key material")
	}

	der := block.Bytes
	if x509.IsEncryptedPEMBlock(block) { //nolint:staticcheck // legacy PEM encryption is what the platform issues
		decrypted, err := x509.DecryptPEMBlock(block, []byte(passPhrase)) //nolint:staticcheck
		if err != nil {
			return nil, fmt.Errorf("signer: decrypt key: %w", err)
		}
		der = decrypted
	}

	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("signer: parse key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("signer: key is not RSA")
	}
	return key, nil
}
