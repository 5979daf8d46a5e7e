/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
	cmdutils "github.com/trustbloc/cmdutil-go/pkg/utils/cmd"
)

const (
	commonEnvVarUsageText = "Alternatively, this can be set with the following environment variable: "

	hostURLFlagName      = "host-url"
	hostURLFlagShorthand = "u"
	hostURLEnvKey        = "VCI_REST_HOST_URL"
	hostURLFlagUsage     = "Host:Port to run the vci-rest instance on. " +
		commonEnvVarUsageText + hostURLEnvKey

	hostURLExternalFlagName  = "host-url-external"
	hostURLExternalEnvKey    = "VCI_REST_HOST_URL_EXTERNAL"
	hostURLExternalFlagUsage = "The externally reachable issuer URL, used in offers, " +
		"discovery documents and token audiences. " + commonEnvVarUsageText + hostURLExternalEnvKey

	organisationIDFlagName  = "organisation-id"
	organisationIDEnvKey    = "VCI_REST_ORGANISATION_ID"
	organisationIDFlagUsage = "The organisation this issuer instance serves. " +
		commonEnvVarUsageText + organisationIDEnvKey

	identitySeedFlagName  = "identity-seed"
	identitySeedEnvKey    = "VCI_REST_IDENTITY_SEED" //nolint: gosec
	identitySeedFlagUsage = "Hex-encoded seed (up to 32 bytes) the organisation's P-256 " +
		"signing key and did:key are derived from. A random key is used when unset. " +
		commonEnvVarUsageText + identitySeedEnvKey

	databaseTypeFlagName  = "database-type"
	databaseTypeEnvKey    = "VCI_REST_DATABASE_TYPE"
	databaseTypeFlagUsage = "The type of database to use. Supported options: mem, mongodb. " +
		commonEnvVarUsageText + databaseTypeEnvKey

	databaseURLFlagName  = "database-url"
	databaseURLEnvKey    = "VCI_REST_DATABASE_URL"
	databaseURLFlagUsage = "The connection string of the database. Not needed if using mem. " +
		"For mongodb, e.g. mongodb://mongodb.example.com:27017. " +
		commonEnvVarUsageText + databaseURLEnvKey

	databaseNameFlagName  = "database-name"
	databaseNameEnvKey    = "VCI_REST_DATABASE_NAME"
	databaseNameFlagUsage = "The database name. " + commonEnvVarUsageText + databaseNameEnvKey

	databaseTypeMem     = "mem"
	databaseTypeMongoDB = "mongodb"

	defaultDatabaseName = "vci"
)

type startupParameters struct {
	hostURL         string
	hostURLExternal string
	organisationID  string
	identitySeed    []byte
	databaseType    string
	databaseURL     string
	databaseName    string
}

func getStartupParameters(cmd *cobra.Command) (*startupParameters, error) {
	hostURL, err := cmdutils.GetUserSetVarFromString(cmd, hostURLFlagName, hostURLEnvKey, false)
	if err != nil {
		return nil, err
	}

	hostURLExternal, err := cmdutils.GetUserSetVarFromString(cmd, hostURLExternalFlagName,
		hostURLExternalEnvKey, false)
	if err != nil {
		return nil, err
	}

	organisationID, err := cmdutils.GetUserSetVarFromString(cmd, organisationIDFlagName,
		organisationIDEnvKey, false)
	if err != nil {
		return nil, err
	}

	var identitySeed []byte

	if seedHex := cmdutils.GetUserSetOptionalVarFromString(cmd, identitySeedFlagName,
		identitySeedEnvKey); seedHex != "" {
		identitySeed, err = hex.DecodeString(seedHex)
		if err != nil {
			return nil, fmt.Errorf("decode identity seed: %w", err)
		}
	}

	databaseType := cmdutils.GetUserSetOptionalVarFromString(cmd, databaseTypeFlagName, databaseTypeEnvKey)
	if databaseType == "" {
		databaseType = databaseTypeMem
	}

	if databaseType != databaseTypeMem && databaseType != databaseTypeMongoDB {
		return nil, fmt.Errorf("unsupported database type %q", databaseType)
	}

	databaseURL := cmdutils.GetUserSetOptionalVarFromString(cmd, databaseURLFlagName, databaseURLEnvKey)
	if databaseType == databaseTypeMongoDB && databaseURL == "" {
		return nil, fmt.Errorf("%s is required for database type %s", databaseURLFlagName, databaseTypeMongoDB)
	}

	databaseName := cmdutils.GetUserSetOptionalVarFromString(cmd, databaseNameFlagName, databaseNameEnvKey)
	if databaseName == "" {
		databaseName = defaultDatabaseName
	}

	return &startupParameters{
		hostURL:         hostURL,
		hostURLExternal: hostURLExternal,
		organisationID:  organisationID,
		identitySeed:    identitySeed,
		databaseType:    databaseType,
		databaseURL:     databaseURL,
		databaseName:    databaseName,
	}, nil
}

func createFlags(cmd *cobra.Command) {
	cmd.Flags().StringP(hostURLFlagName, hostURLFlagShorthand, "", hostURLFlagUsage)
	cmd.Flags().StringP(hostURLExternalFlagName, "", "", hostURLExternalFlagUsage)
	cmd.Flags().StringP(organisationIDFlagName, "", "", organisationIDFlagUsage)
	cmd.Flags().StringP(identitySeedFlagName, "", "", identitySeedFlagUsage)
	cmd.Flags().StringP(databaseTypeFlagName, "", "", databaseTypeFlagUsage)
	cmd.Flags().StringP(databaseURLFlagName, "", "", databaseURLFlagUsage)
	cmd.Flags().StringP(databaseNameFlagName, "", "", databaseNameFlagUsage)
}
