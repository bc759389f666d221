// Command walcat prints the inbound journal, one record per line.
package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	entrywal "matchbook/infra/wal/entry"
)

func main() {
	dir := pflag.StringP("dir", "d", "./data/wal", "journal directory")
	from := pflag.Uint64("from", 0, "skip records below this sequence")
	truncate := pflag.Uint64("truncate-before", 0, "delete closed segments fully at or below this sequence, then exit")
	pflag.Parse()

	if *truncate > 0 {
		w, err := entrywal.Open(entrywal.Config{Dir: *dir})
		if err != nil {
			fail(err)
		}
		err = w.TruncateBefore(*truncate)
		if cerr := w.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			fail(err)
		}
		return
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	last, err := entrywal.Replay(*dir, func(r *entrywal.Record) error {
		if r.Seq < *from {
			return nil
		}
		_, err := fmt.Fprintf(out, "%d\t%s\t%s\t%s\n",
			r.Seq,
			time.Unix(0, r.Time).Format(time.RFC3339Nano),
			r.Type,
			r.Data,
		)
		return err
	})
	if err != nil {
		out.Flush()
		fail(err)
	}
	fmt.Fprintf(os.Stderr, "last seq %d\n", last)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "walcat: %v\n", err)
	os.Exit(1)
}
