package main

import (
	"html/template"
	"strconv"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	abtest "github.com/tracklab/abtest-go"
)

var page = template.Must(template.New("page").Parse(`<!doctype html>
<html>
<head>{{if .CSS}}<style>{{.CSS}}</style>{{end}}</head>
<body>
<h1>Checkout</h1>
<p>Experiment: {{if .Matched}}{{.Experiment}} / {{.Creative}}{{else}}none{{end}}</p>
</body>
</html>`))

const visitCookie = "abtest_visits"

type pageData struct {
	Matched    bool
	Experiment string
	Creative   string
	CSS        template.CSS
}

func main() {
	client := abtest.NewClient(os.Getenv("ABTEST_API_KEY"),
		abtest.WithSnapshotSource(abtest.FileSnapshotSource{Path: os.Getenv("ABTEST_SNAPSHOT_FILE")}),
		abtest.WithSnapshotRefreshInterval(30*time.Second),
		abtest.WithSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil))),
	)

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		visits := countVisit(w, r)
		decision, err := client.Execute(r.Context(), abtest.ExecuteRequest{
			UserID:     r.URL.Query().Get("user"),
			URL:        "http://" + r.Host + r.URL.RequestURI(),
			UserAgent:  r.UserAgent(),
			Language:   r.Header.Get("Accept-Language"),
			Referrer:   r.Referer(),
			VisitCount: visits,
		})
		data := pageData{}
		if err == nil && decision.Matched {
			data.Matched = true
			data.Experiment = decision.ExperimentName
			data.Creative = decision.Creative.Name
			data.CSS = template.CSS(decision.Creative.CSS)
		}
		_ = page.Execute(w, data)
	})

	log.Println("Starting server at port 5000")
	if err := http.ListenAndServe(":5000", nil); err != nil {
		log.Fatal(err)
	}
}

// countVisit keeps the visit count in a cookie, as the tracker script does in
// the browser, and returns the count including this visit.
func countVisit(w http.ResponseWriter, r *http.Request) int {
	visits := 0
	if c, err := r.Cookie(visitCookie); err == nil {
		visits, _ = strconv.Atoi(c.Value)
	}
	visits++
	http.SetCookie(w, &http.Cookie{
		Name:     visitCookie,
		Value:    strconv.Itoa(visits),
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: true,
	})
	return visits
}
