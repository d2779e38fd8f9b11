package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/indexfund-backend/internal/config"
	"github.com/simaogato/indexfund-backend/internal/domain"
)

func newServeFlags(t *testing.T, conf *config.ServerConfig, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "serve"}
	config.SetupFundFlags(&conf.Fund, cmd)
	config.SetupGovernanceFlags(&conf.Governance, cmd)
	config.SetupAuthFlags(&conf.Auth, cmd)
	config.SetupServerFlags(&conf.Server, cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestBindFlags(t *testing.T) {
	var conf config.ServerConfig
	cmd := newServeFlags(t, &conf, "--server.port=9000")

	v := viper.New()
	v.Set("server.port", 7000)
	v.Set("fund.treasury", "vault")
	v.Set("fund.reporters", []interface{}{"oracle-a", "oracle-b"})
	v.Set("governance.min-council-votes", 3)

	require.NoError(t, bindFlags(cmd, v))

	assert.Equal(t, 9000, conf.Server.Port, "command line wins over config")
	assert.Equal(t, "vault", conf.Fund.Treasury)
	assert.Equal(t, []string{"oracle-a", "oracle-b"}, conf.Fund.Reporters)
	assert.Equal(t, 3, conf.Governance.MinCouncilVotes)
}

func TestBindFlags_InvalidValue(t *testing.T) {
	var conf config.ServerConfig
	cmd := newServeFlags(t, &conf)

	v := viper.New()
	v.Set("server.port", "eighty")

	assert.Error(t, bindFlags(cmd, v))
}

func TestFundParams(t *testing.T) {
	var conf config.ServerConfig
	newServeFlags(t, &conf, "--fund.minimum-redemption=10", "--fund.transferable-assets=DOT,KSM", "--governance.threshold=0.6")

	params, err := fundParams(conf)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountID("treasury"), params.Treasury)
	assert.Equal(t, "../parachain(2000)", params.SelfLocation.String())
	assert.Equal(t, domain.Balance(10), params.MinimumRedemption)
	assert.Equal(t, []domain.AssetID{"DOT", "KSM"}, params.TransferableAssets)
	assert.Equal(t, "0.6", params.Rules.Threshold.String())

	conf.Governance.Threshold = "2"
	_, err = fundParams(conf)
	assert.Error(t, err)
}
