package config

import "testing"

func TestSetConfigAndGetConfig(t *testing.T) {
	original := GetConfig()
	t.Cleanup(func() { SetConfig(original) })

	cfg := validConfig()
	cfg.RedisHost = "singleton-host"
	SetConfig(cfg)

	if got := GetConfig(); got != cfg {
		t.Errorf("GetConfig() = %p, want %p", got, cfg)
	}
	if got := MustGetConfig(); got.RedisHost != "singleton-host" {
		t.Errorf("MustGetConfig().RedisHost = %q", got.RedisHost)
	}
}

func TestMustGetConfig_PanicsWhenUnset(t *testing.T) {
	original := GetConfig()
	t.Cleanup(func() { SetConfig(original) })
	SetConfig(nil)

	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustGetConfig()
}
