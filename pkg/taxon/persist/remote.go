package persist

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/cognitext/taxon/pkg/taxon/internalerr"
)

// ImportRemote fetches a pre-trained model blob over HTTP and writes it
// verbatim to path for a later Load. The payload is not validated here;
// corruption surfaces as ErrCorruptModel when the file is loaded.
func ImportRemote(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", internalerr.ErrRemoteImport, err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: fetch %s: %v", internalerr.ErrRemoteImport, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: fetch %s: status %d", internalerr.ErrRemoteImport, url, resp.StatusCode)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %v", internalerr.ErrRemoteImport, err)
		}
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", internalerr.ErrRemoteImport, err)
	}
	_, err = io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("%w: write %s: %v", internalerr.ErrRemoteImport, path, err)
	}
	return nil
}
