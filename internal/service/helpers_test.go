package service

import (
	"io"
	"log/slog"
	"strings"

	"github.com/dukerupert/invoicer/internal/billing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func countCalls(m *billing.MockClient, prefix string) int {
	n := 0
	for _, c := range m.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}
