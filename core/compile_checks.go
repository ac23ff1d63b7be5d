package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ Profile         = (*BaseProfile)(nil)
	_ Provider        = (*InstanceProvider)(nil)
	_ Provider        = (*ClassProvider)(nil)
	_ Provider        = (*StatsProvider)(nil)
	_ Provider        = ProviderFunc(nil)
	_ Handle          = (*RefHandle)(nil)
	_ Handle          = WeakHandle[struct{}]{}
	_ TimingRecorder  = (*Collector)(nil)
	_ MetricsRecorder = NopMetricsRecorder{}
	_ ConfigProvider  = (*CfgxConfigProvider)(nil)
	_ OptionsResolver = GoOptionsResolver{}
	_ RawConfigLoader = StaticConfigLoader{}

	_ Storage            = (*timedStorage)(nil)
	_ Wallet             = (*timedWallet)(nil)
	_ CredentialIssuer   = (*timedIssuer)(nil)
	_ CredentialVerifier = (*timedVerifier)(nil)
	_ CredentialHolder   = (*timedHolder)(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
