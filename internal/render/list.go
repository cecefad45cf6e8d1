package render

import (
	"context"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"pastebox/internal/log"
	"pastebox/internal/model"

	"github.com/dustin/go-humanize"
)

var fileListTmpl = template.Must(template.New("filelist").Parse(`<table class="filelist">
<thead><tr><th>File</th><th>Size</th><th>Type</th><th>Uploaded</th><th></th></tr></thead>
<tbody>
{{- range .}}
<tr><td><a href="{{.URL}}">{{.Label}}</a></td><td title="{{.Bytes}} bytes">{{.Size}}</td><td>{{.Type}}</td><td title="{{.UploadedISO}}">{{.Uploaded}}</td><td>{{if .Locked}}locked{{end}}{{if not .Complete}} incomplete{{end}}</td></tr>
{{- end}}
</tbody>
</table>`))

type fileRowVM struct {
	URL         string
	Label       string
	Bytes       int64
	Size        string
	Type        string
	Uploaded    string
	UploadedISO string
	Locked      bool
	Complete    bool
}

// SortFileInfos orders files by filename, byte-wise and case-sensitive. Equal
// filenames keep a stable order by item name.
func SortFileInfos(files []model.FileInfo) {
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Filename != files[j].Filename {
			return files[i].Filename < files[j].Filename
		}
		return files[i].Name < files[j].Name
	})
}

// FileTable renders files as a table linking to each item's display URL. The
// slice is sorted in place.
func FileTable(files []model.FileInfo, urls URLBuilder) (template.HTML, error) {
	SortFileInfos(files)
	rows := make([]fileRowVM, 0, len(files))
	for _, f := range files {
		label := f.Filename
		if label == "" {
			label = f.Name
		}
		uploaded := time.Unix(f.UploadedAt, 0)
		rows = append(rows, fileRowVM{
			URL:         urls.URL(f.Name, EndpointDisplay),
			Label:       label,
			Bytes:       f.Size,
			Size:        humanize.IBytes(uint64(max(f.Size, 0))),
			Type:        f.Type,
			Uploaded:    humanize.Time(uploaded),
			UploadedISO: uploaded.UTC().Format(time.RFC3339),
			Locked:      f.Locked,
			Complete:    f.Complete,
		})
	}
	return execFragment(fileListTmpl, rows)
}

// ListNames reads one item name per line, ignoring blank lines.
func ListNames(data []byte) []string {
	var names []string
	for _, line := range strings.Split(string(data), "\n") {
		if n := strings.TrimSpace(line); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// renderList resolves the listed names and renders them as a table. Names the
// resolver does not know are skipped with a warning.
func (d *Dispatcher) renderList(ctx context.Context, h Handle) (template.HTML, error) {
	data, err := h.ReadAll(ctx)
	if err != nil {
		return "", fmt.Errorf("read: %w", err)
	}
	names := ListNames(data)
	files, err := d.resolver.FileInfos(ctx, names)
	if err != nil {
		return "", fmt.Errorf("resolve list entries: %w", err)
	}

	found := make(map[string]bool, len(files))
	for _, f := range files {
		found[f.Name] = true
	}
	for _, n := range names {
		if !found[n] {
			log.WarningLog.Printf("list %s: skipping unknown item %q", h.Name(), n)
		}
	}
	return FileTable(files, d.urls)
}
