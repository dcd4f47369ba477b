package suricata

import (
	"bytes"
	_ "embed"
	"io"
	"os"
	"strconv"
	"strings"
	"text/template"

	"go.uber.org/zap"
)

//go:embed suricata.yaml.in
var configTemplate string

// Renderer substitutes named bindings into a template.
type Renderer interface {
	Render(tmpl string, bindings map[string]string) ([]byte, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(tmpl string, bindings map[string]string) ([]byte, error)

// Render calls f.
func (f RendererFunc) Render(tmpl string, bindings map[string]string) ([]byte, error) {
	return f(tmpl, bindings)
}

type textRenderer struct{}

// Missing keys are errors so a slot the bindings do not cover is reported
// instead of rendering "<no value>".
func (textRenderer) Render(tmpl string, bindings map[string]string) ([]byte, error) {
	t, err := template.New("suricata.yaml").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, bindings); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MaterializerOption configures a Materializer.
type MaterializerOption func(*Materializer)

// WithRenderer replaces the text/template renderer.
func WithRenderer(r Renderer) MaterializerOption {
	return func(m *Materializer) {
		m.renderer = r
	}
}

// WithTemplate replaces the embedded suricata.yaml template.
func WithTemplate(tmpl string) MaterializerOption {
	return func(m *Materializer) {
		m.template = tmpl
	}
}

// Materializer renders a Config into Suricata's YAML format and writes it out.
// It holds no per-call state and may be shared between goroutines.
type Materializer struct {
	renderer Renderer
	template string
	logger   *zap.Logger
}

// NewMaterializer constructs a Materializer. A nil logger discards output.
func NewMaterializer(logger *zap.Logger, opts ...MaterializerOption) *Materializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Materializer{
		renderer: textRenderer{},
		template: configTemplate,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Render returns the rendered configuration without writing it.
func (m *Materializer) Render(cfg Config) ([]byte, error) {
	m.logger.Debug("rendering suricata config template")
	out, err := m.renderer.Render(m.template, bindings(cfg))
	if err != nil {
		return nil, &TemplateError{Err: err}
	}
	return out, nil
}

// Materialize renders cfg and writes the result to cfg.MaterializeConfigTo,
// creating or truncating it. The write is not atomic: on failure a partially
// written file is left in place.
func (m *Materializer) Materialize(cfg Config) error {
	rendered, err := m.Render(cfg)
	if err != nil {
		return err
	}

	m.logger.Debug("writing rendered config", zap.String("path", cfg.MaterializeConfigTo))
	if err := writeConfig(cfg.MaterializeConfigTo, rendered); err != nil {
		return err
	}
	m.logger.Debug("config written",
		zap.String("path", cfg.MaterializeConfigTo),
		zap.Int("bytes", len(rendered)),
	)
	return nil
}

// Materialize writes c using the embedded template and no logging.
func (c Config) Materialize() error {
	return NewMaterializer(nil).Materialize(c)
}

func bindings(cfg Config) map[string]string {
	return map[string]string{
		"rules":                lossyPath(cfg.RulePath),
		"alerts":               lossyPath(cfg.AlertPath),
		"suricata_config_path": lossyPath(cfg.SuricataConfigPath),
		"internal_ips":         cfg.InternalIPs.String(),
		"stats":                strconv.FormatBool(cfg.EnableStats),
		"max_pending_packets":  strconv.FormatUint(uint64(cfg.MaxPendingPackets), 10),
	}
}

// lossyPath replaces invalid UTF-8 sequences with U+FFFD.
func lossyPath(p string) string {
	return strings.ToValidUTF8(p, "\uFFFD")
}

func writeConfig(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return &IOError{Path: path, Err: err}
	}

	n, err := f.Write(data)
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return &IOError{Path: path, Err: err}
	}
	return nil
}
