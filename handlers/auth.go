package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
)

// Cabeçalhos de identificação do chamador.
const (
	HeaderCaller    = "X-Caller"
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
)

// DefaultSignatureWindow é a validade de uma assinatura em torno do X-Timestamp.
const DefaultSignatureWindow = 5 * time.Minute

type callerKey struct{}

// SigningPayload é a mensagem que o chamador assina: "MÉTODO CAMINHO\ntimestamp\ncorpo".
// timestamp é o X-Timestamp em segundos Unix.
func SigningPayload(method, path, timestamp string, body []byte) []byte {
	payload := make([]byte, 0, len(method)+len(path)+len(timestamp)+len(body)+3)
	payload = append(payload, method...)
	payload = append(payload, ' ')
	payload = append(payload, path...)
	payload = append(payload, '\n')
	payload = append(payload, timestamp...)
	payload = append(payload, '\n')
	return append(payload, body...)
}

// ReplayGuard recusa assinaturas fora da janela de tempo ou já usadas.
type ReplayGuard struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[solana.Signature]time.Time // assinatura -> X-Timestamp
	now    func() time.Time
}

// NewReplayGuard cria o guarda; window <= 0 usa DefaultSignatureWindow.
func NewReplayGuard(window time.Duration) *ReplayGuard {
	if window <= 0 {
		window = DefaultSignatureWindow
	}
	return &ReplayGuard{
		window: window,
		seen:   make(map[solana.Signature]time.Time),
		now:    time.Now,
	}
}

// Accept registra a assinatura. Retorna false se o timestamp estiver fora da janela
// ou se a assinatura já tiver sido aceita.
func (g *ReplayGuard) Accept(sig solana.Signature, ts time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if ts.Before(now.Add(-g.window)) || ts.After(now.Add(g.window)) {
		return false
	}
	if _, used := g.seen[sig]; used {
		return false
	}

	// Assinaturas vencidas já seriam recusadas pelo timestamp
	for s, seenTS := range g.seen {
		if seenTS.Before(now.Add(-g.window)) {
			delete(g.seen, s)
		}
	}
	g.seen[sig] = ts
	return true
}

// RequireCaller identifica o chamador pela chave pública em X-Caller.
// Com guard != nil, X-Signature deve conter a assinatura ed25519 (base58) do SigningPayload
// e cada assinatura só é aceita uma vez dentro da janela do guard.
func RequireCaller(guard *ReplayGuard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, err := solana.PublicKeyFromBase58(r.Header.Get(HeaderCaller))
			if err != nil || caller.IsZero() {
				http.Error(w, "cabeçalho X-Caller ausente ou inválido", http.StatusUnauthorized)
				return
			}

			if guard != nil {
				body, err := io.ReadAll(r.Body)
				if err != nil {
					http.Error(w, "falha ao ler corpo da requisição", http.StatusBadRequest)
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))

				timestamp := r.Header.Get(HeaderTimestamp)
				unix, err := strconv.ParseInt(timestamp, 10, 64)
				if err != nil {
					http.Error(w, "cabeçalho X-Timestamp ausente ou inválido", http.StatusUnauthorized)
					return
				}
				sig, err := solana.SignatureFromBase58(r.Header.Get(HeaderSignature))
				if err != nil || !caller.Verify(SigningPayload(r.Method, r.URL.Path, timestamp, body), sig) {
					http.Error(w, "assinatura inválida", http.StatusUnauthorized)
					return
				}
				if !guard.Accept(sig, time.Unix(unix, 0)) {
					http.Error(w, "assinatura expirada ou já utilizada", http.StatusUnauthorized)
					return
				}
			}

			ctx := context.WithValue(r.Context(), callerKey{}, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerFrom retorna o chamador autenticado pelo RequireCaller.
func CallerFrom(ctx context.Context) (solana.PublicKey, bool) {
	caller, ok := ctx.Value(callerKey{}).(solana.PublicKey)
	return caller, ok
}
