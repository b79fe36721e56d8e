package sandbox

import (
	"encoding/base64"
	"encoding/json"
	"html/template"
	"net/http"
	"strings"

	"github.com/goliatone/go-threeds/core"
)

var autoPostForm = template.Must(template.New("acs").Parse(`<!DOCTYPE html>
<html>
<body onload="document.forms[0].submit()">
<form method="POST" action="{{.Action}}">
{{range .Fields}}<input type="hidden" name="{{.Name}}" value="{{.Value}}"/>
{{end}}</form>
</body>
</html>
`))

type formField struct {
	Name  string
	Value string
}

type autoPostPage struct {
	Action string
	Fields []formField
}

func (g *Gateway) handleMethod(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("<!DOCTYPE html><html><body></body></html>"))
}

// handleChallenge completes a 3DS2 challenge. Every challenge presented by
// the sandbox ACS succeeds.
func (g *Gateway) handleChallenge(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	creq := map[string]string{}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(r.PostForm.Get("creq")))
	if err != nil || json.Unmarshal(raw, &creq) != nil {
		http.Error(w, "invalid creq", http.StatusBadRequest)
		return
	}

	g.mu.Lock()
	id, ok := g.challenges[creq["acsTransID"]]
	tx := g.transactions[id]
	if !ok || tx == nil || tx.status != core.StatusChallengeRequired {
		g.mu.Unlock()
		http.Error(w, "unknown challenge", http.StatusNotFound)
		return
	}
	tx.authenticate()
	delete(g.challenges, creq["acsTransID"])
	action := tx.challengeReturnURL
	cres := encodeJSON(map[string]string{
		"threeDSServerTransID": tx.id,
		"acsTransID":           tx.acsTransactionID,
		"messageType":          "CRes",
		"messageVersion":       MessageVersionTwo,
		"transStatus":          "Y",
	})
	g.mu.Unlock()

	writeAutoPost(w, autoPostPage{
		Action: action,
		Fields: []formField{
			{Name: "cres", Value: cres},
			{Name: "threeDSSessionData", Value: r.PostForm.Get("threeDSSessionData")},
		},
	})
}

// handlePaReq plays the 3DS1 ACS: it answers the PaReq with a PaRes that the
// gateway will accept on the next result call.
func (g *Gateway) handlePaReq(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	pareq := strings.TrimSpace(r.PostForm.Get("PaReq"))
	termURL := strings.TrimSpace(r.PostForm.Get("TermUrl"))

	g.mu.Lock()
	id, ok := g.pareqs[pareq]
	tx := g.transactions[id]
	if !ok || tx == nil {
		g.mu.Unlock()
		http.Error(w, "unknown pareq", http.StatusNotFound)
		return
	}
	if tx.pares == "" {
		tx.pares = base64.StdEncoding.EncodeToString([]byte("pares:" + g.NewID()))
	}
	pares := tx.pares
	if termURL == "" {
		termURL = tx.challengeReturnURL
	}
	g.mu.Unlock()

	writeAutoPost(w, autoPostPage{
		Action: termURL,
		Fields: []formField{
			{Name: "PaRes", Value: pares},
			{Name: "MD", Value: r.PostForm.Get("MD")},
		},
	})
}

func writeAutoPost(w http.ResponseWriter, page autoPostPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = autoPostForm.Execute(w, page)
}
