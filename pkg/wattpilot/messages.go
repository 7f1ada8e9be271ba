package wattpilot

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"strconv"

	"golang.org/x/crypto/pbkdf2"
)

// message types sent by the wallbox
const (
	msgHello        = "hello"
	msgAuthRequired = "authRequired"
	msgAuthSuccess  = "authSuccess"
	msgAuthError    = "authError"
	msgFullStatus   = "fullStatus"
	msgDeltaStatus  = "deltaStatus"
	msgResponse     = "response"
)

// message types sent to the wallbox
const (
	msgAuth       = "auth"
	msgSetValue   = "setValue"
	msgSecuredMsg = "securedMsg"
)

const (
	passwordIterations = 100000
	passwordKeyLength  = 256
	hashedPasswordLen  = 32
	tokenLength        = 32
	tokenAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// inbound is the union of every message the wallbox sends.
type inbound struct {
	Type         string         `json:"type"`
	Serial       string         `json:"serial,omitempty"`
	HostName     string         `json:"hostname,omitempty"`
	FriendlyName string         `json:"friendly_name,omitempty"`
	Version      string         `json:"version,omitempty"`
	Secured      bool           `json:"secured,omitempty"`
	Token1       string         `json:"token1,omitempty"`
	Token2       string         `json:"token2,omitempty"`
	Message      string         `json:"message,omitempty"`
	Partial      bool           `json:"partial,omitempty"`
	Status       map[string]any `json:"status,omitempty"`
	RequestID    any            `json:"requestId,omitempty"`
	Success      *bool          `json:"success,omitempty"`
}

type authMessage struct {
	Type   string `json:"type"`
	Token3 string `json:"token3"`
	Hash   string `json:"hash"`
}

type setValueMessage struct {
	Type      string `json:"type"`
	RequestID int64  `json:"requestId"`
	Key       string `json:"key"`
	Value     any    `json:"value"`
}

type securedMessage struct {
	Type      string `json:"type"`
	Data      string `json:"data"`
	RequestID string `json:"requestId"`
	HMAC      string `json:"hmac"`
}

// HashPassword derives the key the wallbox expects from the user password and the device serial.
func HashPassword(password, serial string) string {
	key := pbkdf2.Key([]byte(password), []byte(serial), passwordIterations, passwordKeyLength, sha512.New)
	return base64.StdEncoding.EncodeToString(key)[:hashedPasswordLen]
}

// AuthHash answers the authRequired challenge.
func AuthHash(hashedPassword, token1, token2, token3 string) string {
	hash1 := sha256Hex(token1 + hashedPassword)
	return sha256Hex(token3 + token2 + hash1)
}

// SignMessage is the HMAC the wallbox checks on secured messages.
func SignMessage(hashedPassword string, data []byte) string {
	mac := hmac.New(sha256.New, []byte(hashedPassword))
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func randomToken() (string, error) {
	max := big.NewInt(int64(len(tokenAlphabet)))
	token := make([]byte, tokenLength)
	for i := range token {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		token[i] = tokenAlphabet[n.Int64()]
	}
	return string(token), nil
}

func secure(hashedPassword string, msg setValueMessage) (securedMessage, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return securedMessage{}, err
	}
	return securedMessage{
		Type:      msgSecuredMsg,
		Data:      string(data),
		RequestID: strconv.FormatInt(msg.RequestID, 10) + "sm",
		HMAC:      SignMessage(hashedPassword, data),
	}, nil
}
