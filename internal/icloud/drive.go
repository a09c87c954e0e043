package icloud

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// rootDriveWSID is the well-known id of the iCloud Drive root folder.
// Children carry full drivewsids, so only Root needs this convention.
const rootDriveWSID = "FOLDER::com.apple.CloudDocs::root"

// DriveService issues iCloud Drive fetches against the drivews endpoint
// discovered during authentication. It shares the client's session and lock,
// so drive fetches serialize with authentication operations.
type DriveService struct {
	client  *Client
	baseURL string
}

// Drive returns a DriveService bound to the session's discovered drive
// endpoint. It fails with a MissingItemError until an Authenticate call has
// populated the web services map.
func (c *Client) Drive() (*DriveService, error) {
	url, ok := c.ServiceURL("drive")
	if !ok {
		return nil, &MissingItemError{Field: "drive service URL"}
	}

	return &DriveService{client: c, baseURL: url}, nil
}

type itemDetailsRequest struct {
	DriveWSID   string `json:"drivewsid"`
	PartialData bool   `json:"partialData"`
}

// Root fetches the drive's root folder. The server answering with anything
// but a folder for the root is ErrInvalidNodeType.
func (s *DriveService) Root(ctx context.Context) (*Folder, error) {
	node, err := s.GetNode(ctx, rootDriveWSID)
	if err != nil {
		return nil, err
	}

	folder, ok := node.(*Folder)
	if !ok {
		return nil, fmt.Errorf("icloud: root node is not a folder: %w", ErrInvalidNodeType)
	}

	return folder, nil
}

// GetNode fetches a single node (with its full child listing, for folders)
// by drivewsid. The endpoint signals session expiry with non-200 statuses,
// so any of those maps to ErrAuthenticationFailed rather than a generic
// fetch error.
func (s *DriveService) GetNode(ctx context.Context, id string) (Node, error) {
	s.client.mu.Lock()
	defer s.client.mu.Unlock()

	s.client.logger.Info("fetching drive node", slog.String("drivewsid", id))

	body, err := json.Marshal([]itemDetailsRequest{{DriveWSID: id, PartialData: false}})
	if err != nil {
		return nil, fmt.Errorf("icloud: encoding item details request: %w", err)
	}

	resp, err := s.client.do(ctx, http.MethodPost, s.baseURL+"/retrieveItemDetailsInFolders",
		body, func(h http.Header) {
			h.Set("Content-Type", "application/json")
			h.Set("Accept", "application/json")
		})
	if err != nil {
		return nil, err
	}
	defer drainClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("icloud: item details returned HTTP %d: %w",
			resp.StatusCode, ErrAuthenticationFailed)
	}

	var batch []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, fmt.Errorf("icloud: decoding item details response: %w", err)
	}

	if len(batch) != 1 {
		return nil, fmt.Errorf("icloud: item details returned %d elements, want 1", len(batch))
	}

	return DecodeNode(batch[0])
}
