package salesforce

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// decodeJSON decodes a JSON body into out.
func decodeJSON(r io.Reader, out any) error {
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return eris.Wrap(err, "sf: decode json")
	}
	return nil
}
