package edgar

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/filing"
	"github.com/sells-group/holdings-cli/internal/model"
)

// registryProgressEvery is how many registry lines are read between progress logs.
const registryProgressEvery = 1000

// RegistryURL returns the location of the bulk CIK lookup file.
func (c *Client) RegistryURL() string {
	return c.archiveURL + "/Archives/edgar/cik-lookup-data.txt"
}

// Registry streams the bulk CIK lookup file, calling fn for each parsed entry.
// Returns the number of entries passed to fn.
func (c *Client) Registry(ctx context.Context, fn func(model.Fund) error) (int, error) {
	body, err := c.f.Download(ctx, c.RegistryURL())
	if err != nil {
		return 0, eris.Wrap(err, "edgar: fetch registry")
	}
	defer body.Close() //nolint:errcheck

	return ParseRegistry(ctx, body, fn)
}

// ParseRegistry reads "NAME:CIK:" lines. The name is everything before the last
// field, so names containing ':' survive. Unparseable lines are logged and skipped.
func ParseRegistry(ctx context.Context, r io.Reader, fn func(model.Fund) error) (int, error) {
	log := zap.L().With(zap.String("component", "edgar.registry"))

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var lines, entries int
	for sc.Scan() {
		lines++
		if lines%registryProgressEvery == 0 {
			if err := ctx.Err(); err != nil {
				return entries, eris.Wrap(err, "edgar: registry cancelled")
			}
			log.Info("registry progress", zap.Int("lines", lines), zap.Int("entries", entries))
		}

		fund, ok := ParseRegistryLine(filing.DecodeText(sc.Bytes()))
		if !ok {
			if strings.TrimSpace(sc.Text()) != "" {
				log.Warn("skipping malformed registry line", zap.Int("line", lines))
			}
			continue
		}
		if err := fn(fund); err != nil {
			return entries, err
		}
		entries++
	}
	if err := sc.Err(); err != nil {
		return entries, eris.Wrap(err, "edgar: read registry")
	}

	log.Info("registry read", zap.Int("lines", lines), zap.Int("entries", entries))
	return entries, nil
}

// ParseRegistryLine parses one "NAME:CIK:" line into a fund with a normalized CIK.
func ParseRegistryLine(line string) (model.Fund, bool) {
	line = strings.TrimRight(strings.TrimSpace(line), ":")
	i := strings.LastIndex(line, ":")
	if i <= 0 {
		return model.Fund{}, false
	}
	name := strings.TrimSpace(line[:i])
	cik, err := model.NormalizeCIK(line[i+1:])
	if name == "" || err != nil {
		return model.Fund{}, false
	}
	return model.Fund{FundName: name, CIK: cik}, true
}
