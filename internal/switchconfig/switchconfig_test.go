package switchconfig

import (
	"strings"
	"testing"

	"github.com/sp00nznet/xenonprep/internal/switchrecover"
)

func TestWriteShortTableSingleLine(t *testing.T) {
	sites := []switchrecover.Site{
		{
			BctrAddr: 0x82001000,
			Info: switchrecover.SwitchInfo{
				TableAddr: 0x82002000, BaseAddr: 0x82003000,
				EntryType: "u8", EntryScale: 1, IndexReg: 3, TableSize: 2,
			},
			Labels: []uint32{0x82003001, 0x82003002},
		},
	}
	var sb strings.Builder
	if err := Write(&sb, "test", sites); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := sb.String()
	if !strings.Contains(out, "[[switch]]") {
		t.Error("missing [[switch]] header")
	}
	if !strings.Contains(out, "base = 0x82001000") {
		t.Error("missing base line")
	}
	if !strings.Contains(out, "labels = [0x82003001, 0x82003002]") {
		t.Errorf("labels not rendered on one line: %s", out)
	}
	if !strings.Contains(out, "Summary: 1 total, 1 parsed, 0 errors") {
		t.Errorf("missing summary: %s", out)
	}
}

func TestWriteWrapsLongTables(t *testing.T) {
	labels := make([]uint32, 10)
	for i := range labels {
		labels[i] = 0x82000000 + uint32(i*4)
	}
	sites := []switchrecover.Site{{
		BctrAddr: 0x82001000,
		Info: switchrecover.SwitchInfo{
			TableAddr: 0x82002000, BaseAddr: 0x82000000,
			EntryType: "u16", EntryScale: 1, IndexReg: 5, TableSize: 10,
		},
		Labels: labels,
	}}
	var sb strings.Builder
	if err := Write(&sb, "test", sites); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := sb.String()
	if !strings.Contains(out, "labels = [\n") {
		t.Errorf("labels not wrapped to multiple lines: %s", out)
	}
	if !strings.Contains(out, "    0x82000000, 0x82000004, 0x82000008, 0x8200000C, 0x82000010, 0x82000014, 0x82000018, 0x8200001C,\n") {
		t.Errorf("first label row wrong: %s", out)
	}
	if !strings.Contains(out, "    0x82000020, 0x82000024\n]") {
		t.Errorf("final label row should drop the trailing comma: %s", out)
	}
}

func TestWriteReportsErrors(t *testing.T) {
	sites := []switchrecover.Site{{BctrAddr: 0x42, Err: errBoom{}}}
	var sb strings.Builder
	if err := Write(&sb, "test", sites); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(sb.String(), "ERROR at bctr=0x00000042") {
		t.Errorf("missing error line: %s", sb.String())
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
