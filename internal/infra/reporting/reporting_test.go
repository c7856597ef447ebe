package reporting

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/chaostheorist/chaos/internal/domain"
)

func TestErrorLog_Report(t *testing.T) {
	var buf bytes.Buffer
	r := NewErrorLog(slog.New(slog.NewTextHandler(&buf, nil)))

	r.Report(fmt.Errorf("%w: connection refused", domain.ErrTransport))
	r.Report(nil)

	out := buf.String()
	if !strings.Contains(out, "kind=transport") {
		t.Errorf("log = %q, want kind=transport", out)
	}
	if strings.Count(out, "operation failed") != 1 {
		t.Errorf("nil error should not be logged: %q", out)
	}
}

type memSink struct {
	got []domain.InterventionProposal
	err error
}

func (m *memSink) InsertProposal(ctx context.Context, p domain.InterventionProposal) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.got = append(m.got, p)
	return int64(len(m.got)), nil
}

func TestInterventionLog_Notify(t *testing.T) {
	sink := &memSink{}
	r := NewInterventionLog(sink, "sysadmin-001", slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	r.Notify("lp-1", "sys-1")
	if len(sink.got) != 1 {
		t.Fatalf("stored proposals = %d, want 1", len(sink.got))
	}
	p := sink.got[0]
	if p.LeveragePointID != "lp-1" || p.SystemID != "sys-1" || p.ProposedBy != "sysadmin-001" {
		t.Errorf("proposal = %+v", p)
	}
	if p.ProposedAt.IsZero() {
		t.Error("ProposedAt should be set")
	}
}

func TestInterventionLog_SinkFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	r := NewInterventionLog(&memSink{err: errors.New("disk full")}, "u", slog.New(slog.NewTextHandler(&buf, nil)))
	r.Notify("lp-1", "sys-1")
	if !strings.Contains(buf.String(), "not stored") {
		t.Errorf("log = %q, want storage warning", buf.String())
	}

	NewInterventionLog(nil, "u", nil).Notify("lp-2", "sys-1")
}
