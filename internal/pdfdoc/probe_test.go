package pdfdoc_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/local/examparser/internal/pdfdoc"
	"github.com/local/examparser/internal/pdfdoc/pdfdoctest"
)

func TestProbeText(t *testing.T) {
	dense := strings.Repeat("questão ", 50)
	diag := pdfdoc.ProbeText(pdfdoctest.TextPages(dense, dense), 0)
	if !diag.HasExtractableText {
		t.Errorf("dense document reported without text: %+v", diag)
	}
	if len(diag.Probes) != 1 {
		t.Errorf("probe should stop once threshold is met, probed %d pages", len(diag.Probes))
	}

	scanned := pdfdoc.ProbeText(pdfdoctest.TextPages("", " \n", "12"), 100)
	if scanned.HasExtractableText {
		t.Errorf("scanned document reported with text: %+v", scanned)
	}
	if !reflect.DeepEqual(scanned.SampledPages, []int{0, 1, 2}) {
		t.Errorf("sampled = %v", scanned.SampledPages)
	}
}

func TestProbeTextSamplesLargeDocuments(t *testing.T) {
	pages := make([]string, 20)
	diag := pdfdoc.ProbeText(pdfdoctest.TextPages(pages...), 10)
	if want := []int{0, 5, 10, 15, 19}; !reflect.DeepEqual(diag.SampledPages, want) {
		t.Errorf("sampled = %v, want %v", diag.SampledPages, want)
	}
}
