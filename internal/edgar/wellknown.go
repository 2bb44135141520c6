package edgar

import (
	_ "embed"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/holdings-cli/internal/model"
)

//go:embed wellknown.yaml
var wellKnownYAML []byte

// WellKnownFunds returns the embedded list of commonly tracked funds.
func WellKnownFunds() ([]model.Fund, error) {
	var doc struct {
		Funds []struct {
			Name string `yaml:"name"`
			CIK  string `yaml:"cik"`
		} `yaml:"funds"`
	}
	if err := yaml.Unmarshal(wellKnownYAML, &doc); err != nil {
		return nil, eris.Wrap(err, "edgar: parse well-known funds")
	}

	funds := make([]model.Fund, 0, len(doc.Funds))
	for _, f := range doc.Funds {
		cik, err := model.NormalizeCIK(f.CIK)
		if err != nil {
			return nil, eris.Wrapf(err, "edgar: well-known fund %s", f.Name)
		}
		funds = append(funds, model.Fund{FundName: f.Name, CIK: cik})
	}
	return funds, nil
}
