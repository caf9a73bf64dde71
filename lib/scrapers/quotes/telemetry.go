package quotes

import (
	"quotecrawl/lib/restyutil"
	"quotecrawl/lib/telemetry"
)

var tracer = telemetry.Tracer("quotecrawl.lib.scrapers.quotes")

var restyInstrumentOutput restyutil.InstrumentOutput

// SetRestyInstrumentOutput routes request/response transcripts of every
// client built afterwards to `out`. call before NewClient.
func SetRestyInstrumentOutput(out restyutil.InstrumentOutput) {
	restyInstrumentOutput = out
}
