package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"netviz/core-go/internal/flowlogs"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	var errs []error
	if !c.Server.MockMode {
		if c.OAuth.ClientID == "" {
			errs = append(errs, errors.New("oauth.client_id is required unless server.mock_mode is set"))
		}
		if c.OAuth.RedirectURL == "" {
			errs = append(errs, errors.New("oauth.redirect_url is required unless server.mock_mode is set"))
		}
	}
	if c.Session.Store == "badger" && c.Session.BadgerPath == "" {
		errs = append(errs, errors.New("session.badger_path is required for the badger store"))
	}
	if c.RDNS.Enabled && c.RDNS.Server == "" {
		errs = append(errs, errors.New("rdns.server is required when rdns is enabled"))
	}
	for name, path := range map[string]string{
		"flowlogs.topology_dataset": c.FlowLogs.TopologyDataset,
		"flowlogs.explorer_dataset": c.FlowLogs.ExplorerDataset,
	} {
		if _, err := flowlogs.ValidateDatasetPath(path); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
