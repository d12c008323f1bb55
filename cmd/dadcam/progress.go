package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/mesler1/dadcam/internal/media"
	"github.com/mesler1/dadcam/internal/pipeline"
	"github.com/mesler1/dadcam/internal/sorter"
)

// progress shows a bar on a terminal and one line per file otherwise.
type progress struct {
	w   io.Writer
	tty bool
	bar *progressbar.ProgressBar
}

func newProgress(w io.Writer) *progress {
	return &progress{w: w, tty: isTerminal(w)}
}

func (p *progress) observer() pipeline.Observer {
	return pipeline.Observer{
		Scanned: func(total int) {
			if total == 0 {
				return
			}
			if p.tty {
				p.bar = progressbar.NewOptions(total,
					progressbar.OptionSetWriter(p.w),
					progressbar.OptionSetDescription("Processing"),
					progressbar.OptionShowCount(),
					progressbar.OptionSetWidth(30),
					progressbar.OptionClearOnFinish(),
				)
				return
			}
			fmt.Fprintf(p.w, "Found %d media files\n", total)
		},
		Started: func(index, total int, file media.File) {
			if p.bar != nil {
				p.bar.Describe(file.Name())
				return
			}
			fmt.Fprintf(p.w, "[%d/%d] %s\n", index, total, file.RelPath)
		},
		Completed: func(_, _ int, res sorter.Result) {
			if p.bar != nil {
				_ = p.bar.Add(1)
			}
		},
	}
}

func (p *progress) finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
