package rollback

import (
	"context"
	"fmt"
	"path"

	"github.com/viant/afs"
	"github.com/viant/approvo/internal/yml"
	"github.com/viant/approvo/runtime/pipeline"
)

// DecodeTemplate decodes a YAML or JSON template document.
func DecodeTemplate(data []byte) (*pipeline.Template, error) {
	ret := &pipeline.Template{}
	if err := yml.Unmarshal([]byte(yml.ExpandEnv(string(data))), ret); err != nil {
		return nil, fmt.Errorf("failed to decode template: %w", err)
	}
	return ret, nil
}

// LoadTemplate reads and validates a template document through afs; the id
// defaults to the file name without extension.
func LoadTemplate(ctx context.Context, fs afs.Service, URL string) (*pipeline.Template, error) {
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to download template %s: %w", URL, err)
	}
	ret, err := DecodeTemplate(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", URL, err)
	}
	if ret.ID == "" {
		name := path.Base(URL)
		ret.ID = name[:len(name)-len(path.Ext(name))]
	}
	if err = ValidateTemplate(ret); err != nil {
		return nil, fmt.Errorf("%s: %w", URL, err)
	}
	return ret, nil
}
