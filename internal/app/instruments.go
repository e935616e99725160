package app

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
)

// Instruments runs a single discovery pass and prints the monitored set.
func (a *App) Instruments(ctx context.Context, w io.Writer) error {
	ex := a.newExchange()
	registry := a.newRegistry(ex, a.newGuard())
	if err := registry.Refresh(ctx); err != nil {
		return err
	}

	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Symbol\tInstrument")
	for _, symbol := range registry.Symbols() {
		h, _ := registry.Lookup(symbol)
		fmt.Fprintf(writer, "%s\t%s\n", symbol, h.Instrument.Display)
	}
	fmt.Fprintf(writer, "\n%d instruments\n", registry.Len())
	return writer.Flush()
}
