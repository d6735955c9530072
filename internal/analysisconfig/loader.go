package analysisconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"github.com/wonny/histpos/internal/risk"
)

// Load reads YAML file and returns Config with raw bytes
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, data, err
	}
	return cfg, data, nil
}

// Parse decodes YAML on top of Default() and validates the result
// YAML에 없는 값은 기본값 유지, 명시한 0은 그대로 유지 (예: hold_risk: 0 = 보유 유지 규칙 끔)
// risk.profiles / risk.triggers는 기본 map과 병합하지 않고 YAML 값으로 통째로 교체
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := defaults.Set(cfg); err != nil {
		return nil, err
	}

	builtinProfiles, builtinTriggers := cfg.Risk.Profiles, cfg.Risk.Triggers
	cfg.Risk.Profiles, cfg.Risk.Triggers = nil, nil

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	if cfg.Risk.Profiles == nil {
		cfg.Risk.Profiles = builtinProfiles
	} else if err := applyProfileDefaults(cfg.Risk.Profiles); err != nil {
		return nil, err
	}
	if cfg.Risk.Triggers == nil {
		cfg.Risk.Triggers = builtinTriggers
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyProfileDefaults YAML로 새로 만든 프로필 항목에 태그 기본값 적용 (normalizer 등)
func applyProfileDefaults(profiles map[string]risk.Profile) error {
	for name, p := range profiles {
		for i := range p.External {
			if err := defaults.Set(&p.External[i]); err != nil {
				return fmt.Errorf("profile %s external[%d]: %w", name, i, err)
			}
		}
		profiles[name] = p
	}
	return nil
}

// Hash generates SHA256 hash from Config (canonical JSON)
// 주의: map 키는 encoding/json이 정렬하므로 해시 재현성 보장
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}
