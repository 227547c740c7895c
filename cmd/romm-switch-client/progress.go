package main

import (
	"fmt"

	"github.com/shalasere/romm-switch-client/pkg/queue"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// runWithProgress starts the background worker and renders one progress
// bar per queue item as it downloads, in the style of the teacher's
// cmd/common.InitBars.
func runWithProgress(e *env) error {
	p := mpb.New(mpb.WithWidth(64))
	barStyle := mpb.BarStyle().Lbound("╢").Filler("█").Tip("█").Padding("░").Rbound("╟")

	var bar *mpb.Bar
	e.queue.Start(e.creds)

	for ev := range e.queue.Events() {
		switch ev.Kind {
		case queue.EventBeginItem:
			name := ev.Title
			bar = p.New(0, barStyle,
				mpb.PrependDecorators(decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DindentRight})),
				mpb.AppendDecorators(decor.EwmaSpeed(decor.SizeB1024(0), "% .2f", 30)),
			)
			bar.SetTotal(e.status.CurrentDownloadSize(), false)
		case queue.EventProgress:
			if bar != nil {
				bar.IncrInt64(ev.Bytes)
			}
		case queue.EventCompletedItem:
			if bar != nil {
				bar.SetTotal(bar.Current(), true)
			}
		case queue.EventFailedItem:
			fmt.Printf("\nfailed: %s: %v\n", ev.Title, ev.Err)
			if bar != nil {
				bar.Abort(false)
			}
		case queue.EventQueueEmpty:
			p.Wait()
			return nil
		}
	}
	p.Wait()
	return nil
}
