package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/imgtag/internal/imgsrc"
)

// PolicyFile はポリシーファイル（YAML）の内容。
//
//	whitelist:
//	  - "*.example.com"
//	blacklist:
//	  - "https://example.com/banned.png"
//	fix_self_closing: true
type PolicyFile struct {
	Whitelist      []string `yaml:"whitelist"`
	Blacklist      []string `yaml:"blacklist"`
	FixSelfClosing *bool    `yaml:"fix_self_closing"`
}

// LoadPolicyFile はポリシーファイルを読み込む。未知のキーはエラーとする。
// 空のファイルは空のポリシーとして扱う。
func LoadPolicyFile(path string) (*PolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	var pf PolicyFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	return &pf, nil
}

// Settings は実行中に差し替え可能な設定のスナップショット。
type Settings struct {
	Policy         *imgsrc.Policy
	FixSelfClosing bool
}

// LoadSettings は環境変数の値とポリシーファイルから現在のSettingsを構築する。
// ポリシーファイルのリストは環境変数のリストを置き換える。
func (c *Config) LoadSettings() (*Settings, error) {
	whitelist, blacklist := c.Whitelist, c.Blacklist
	fix := c.FixSelfClosing

	if c.PolicyFile != "" {
		pf, err := LoadPolicyFile(c.PolicyFile)
		if err != nil {
			return nil, err
		}
		whitelist, blacklist = pf.Whitelist, pf.Blacklist
		if pf.FixSelfClosing != nil {
			fix = *pf.FixSelfClosing
		}
	}

	return &Settings{
		Policy:         imgsrc.NewPolicy(whitelist, blacklist),
		FixSelfClosing: fix,
	}, nil
}

// PolicyStore は現在のSettingsを保持する。読み取りはロックなしで並行に行える。
type PolicyStore struct {
	current atomic.Pointer[Settings]
}

// NewPolicyStore は初期値を持つPolicyStoreを生成する。
func NewPolicyStore(s *Settings) *PolicyStore {
	store := &PolicyStore{}
	store.Store(s)
	return store
}

// Store はSettingsを差し替える。nilは空の設定として扱う。
func (s *PolicyStore) Store(settings *Settings) {
	if settings == nil {
		settings = &Settings{}
	}
	s.current.Store(settings)
}

// Settings は現在のSettingsを返す。
func (s *PolicyStore) Settings() *Settings {
	return s.current.Load()
}

// Policy は現在の検証ポリシーを返す。
func (s *PolicyStore) Policy() *imgsrc.Policy {
	return s.current.Load().Policy
}

// FixSelfClosing は自己終了タグの修正が有効かを返す。
func (s *PolicyStore) FixSelfClosing() bool {
	return s.current.Load().FixSelfClosing
}
