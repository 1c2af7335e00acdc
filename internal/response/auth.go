package response

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/rohmanhakim/webretriever/internal/job"
)

// ParseChallenges reads every WWW-Authenticate (or Proxy-Authenticate)
// header value into job.Challenge values. Digest is preferred over Basic
// when both are offered (§6), which BuildAuthorization enforces by
// scanning for a Digest challenge first.
func ParseChallenges(headerValues []string) []job.Challenge {
	var challenges []job.Challenge
	for _, raw := range headerValues {
		c, ok := parseOneChallenge(raw)
		if ok {
			challenges = append(challenges, c)
		}
	}
	return challenges
}

func parseOneChallenge(raw string) (job.Challenge, bool) {
	parts := strings.SplitN(strings.TrimSpace(raw), " ", 2)
	if len(parts) == 0 {
		return job.Challenge{}, false
	}
	scheme := parts[0]
	c := job.Challenge{Scheme: scheme}
	if len(parts) == 1 {
		return c, true
	}
	params := splitAuthParams(parts[1])
	c.Realm = params["realm"]
	c.Nonce = params["nonce"]
	c.Opaque = params["opaque"]
	c.QOP = params["qop"]
	return c, true
}

// splitAuthParams parses a comma-separated key=value (optionally quoted)
// list, the form every HTTP auth challenge header uses.
func splitAuthParams(s string) map[string]string {
	out := make(map[string]string)
	for _, field := range strings.Split(s, ",") {
		kv := strings.SplitN(strings.TrimSpace(field), "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		val := strings.Trim(strings.TrimSpace(kv[1]), `"`)
		out[key] = val
	}
	return out
}

// BuildAuthorization picks the strongest offered scheme (Digest over
// Basic, per §6) and renders the Authorization (or Proxy-Authorization)
// header value to answer it.
func BuildAuthorization(challenges []job.Challenge, method, uri string, creds Credentials) (string, bool) {
	var digest, basic *job.Challenge
	for i := range challenges {
		if strings.EqualFold(challenges[i].Scheme, "Digest") {
			digest = &challenges[i]
		}
		if strings.EqualFold(challenges[i].Scheme, "Basic") {
			basic = &challenges[i]
		}
	}

	if digest != nil {
		return buildDigest(*digest, method, uri, creds), true
	}
	if basic != nil {
		return buildBasic(creds), true
	}
	return "", false
}

func buildBasic(creds Credentials) string {
	token := base64.StdEncoding.EncodeToString([]byte(creds.Username + ":" + creds.Password))
	return "Basic " + token
}

func buildDigest(c job.Challenge, method, uri string, creds Credentials) string {
	ha1 := md5Hex(creds.Username + ":" + c.Realm + ":" + creds.Password)
	ha2 := md5Hex(method + ":" + uri)

	cnonce := randomHex(8)
	nc := "00000001"

	var response string
	if c.QOP != "" {
		response = md5Hex(strings.Join([]string{ha1, c.Nonce, nc, cnonce, firstQOP(c.QOP), ha2}, ":"))
	} else {
		response = md5Hex(strings.Join([]string{ha1, c.Nonce, ha2}, ":"))
	}

	header := fmt.Sprintf(
		`Digest username="%s", realm="%s", nonce="%s", uri="%s", response="%s"`,
		creds.Username, c.Realm, c.Nonce, uri, response,
	)
	if c.QOP != "" {
		header += fmt.Sprintf(`, qop=%s, nc=%s, cnonce="%s"`, firstQOP(c.QOP), nc, cnonce)
	}
	if c.Opaque != "" {
		header += fmt.Sprintf(`, opaque="%s"`, c.Opaque)
	}
	return header
}

func firstQOP(qop string) string {
	return strings.TrimSpace(strings.Split(qop, ",")[0])
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// ExtractChallenges reads WWW-Authenticate headers off resp (401 case).
func ExtractChallenges(resp *http.Response) []job.Challenge {
	return ParseChallenges(resp.Header.Values("WWW-Authenticate"))
}

// ExtractProxyChallenges reads Proxy-Authenticate headers off resp (407
// case).
func ExtractProxyChallenges(resp *http.Response) []job.Challenge {
	return ParseChallenges(resp.Header.Values("Proxy-Authenticate"))
}
