package models

import (
	"io"

	"github.com/cheggaaa/pb/v3"
)

const transferBar pb.ProgressBarTemplate = `{{with string . "prefix"}}{{.}} {{end}}{{counters . }} {{bar . }} {{percent . }}`

type options struct {
	progress io.Writer
	saveDir  string
}

type Option func(*options) *options

// WithProgress shows progress bars of artifact transfer to w.
func WithProgress(w io.Writer) Option {
	return func(o *options) *options {
		o.progress = w
		return o
	}
}

func buildOptions(opts []Option) *options {
	o := &options{progress: io.Discard}
	for _, opt := range opts {
		o = opt(o)
	}
	return o
}

func (o *options) bar(prefix string, total int64) *pb.ProgressBar {
	bar := transferBar.New(0)
	bar.SetTotal(total)
	bar.Set(pb.Bytes, true)
	bar.Set("prefix", prefix)
	bar.SetWriter(o.progress)
	return bar
}

// WithLocalCopy makes LogModel also write the model files into dir.
func WithLocalCopy(dir string) Option {
	return func(o *options) *options {
		o.saveDir = dir
		return o
	}
}
