package gateway

import (
	"fmt"
	"sort"
	"strings"
)

// Route はパスプレフィックスと転送先サービスの対応を表す。
type Route struct {
	// PathPrefix はマッチ対象のパスプレフィックス（例: "/notifications"）。
	PathPrefix string
	// Host は転送先サービスのホスト名。
	Host string
	// Port は転送先サービスのポート番号。
	Port int
}

// RouteTable はプレフィックスルーティングのためのルート表。
// 起動時に一度だけ構築され、以降は読み取り専用。
type RouteTable struct {
	// routes はプレフィックスの長い順にソートされたルートエントリ。
	routes []Route
}

// NewRouteTable はルートエントリからルート表を構築する。
//
// パスプレフィックスは "/" で始まり、"/" 単体や末尾 "/" は許可しない。
// あるプレフィックスが別のプレフィックスの前方一致になる構成
// （重複を含む）はエラーとして拒否する。これにより有効なパスに
// マッチするエントリは高々1つであることが保証される。
func NewRouteTable(routes []Route) (*RouteTable, error) {
	if len(routes) == 0 {
		return nil, fmt.Errorf("ルートエントリが1つもありません")
	}

	for i, r := range routes {
		if !strings.HasPrefix(r.PathPrefix, "/") || r.PathPrefix == "/" {
			return nil, fmt.Errorf("不正なパスプレフィックスです: %q", r.PathPrefix)
		}
		if strings.HasSuffix(r.PathPrefix, "/") {
			return nil, fmt.Errorf("パスプレフィックスの末尾に / は指定できません: %q", r.PathPrefix)
		}
		if r.Host == "" {
			return nil, fmt.Errorf("転送先ホストが未指定です: prefix=%q", r.PathPrefix)
		}
		if r.Port <= 0 || r.Port > 65535 {
			return nil, fmt.Errorf("転送先ポートが不正です: prefix=%q, port=%d", r.PathPrefix, r.Port)
		}

		for _, prev := range routes[:i] {
			if strings.HasPrefix(r.PathPrefix, prev.PathPrefix) || strings.HasPrefix(prev.PathPrefix, r.PathPrefix) {
				return nil, fmt.Errorf("パスプレフィックスが重複しています: %q と %q", prev.PathPrefix, r.PathPrefix)
			}
		}
	}

	sorted := make([]Route, len(routes))
	copy(sorted, routes)
	// 重複は構築時に拒否済みだが、マッチは常に最長プレフィックス優先で決定的に行う
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].PathPrefix) > len(sorted[j].PathPrefix)
	})

	return &RouteTable{routes: sorted}, nil
}

// Match はリクエストパスにマッチするルートと、プレフィックスを
// 1回だけ取り除いた残りのパスを返す。マッチしない場合はfalseを返す。
// 残りのパスが空になる場合は "/" に正規化する。
//
// マッチはパスセグメント単位で判定する。"/chatx" のような単なる文字列の
// 前方一致はプレフィックス "/chat" にマッチしない。
func (t *RouteTable) Match(path string) (Route, string, bool) {
	for _, r := range t.routes {
		if !strings.HasPrefix(path, r.PathPrefix) {
			continue
		}
		rest := strings.TrimPrefix(path, r.PathPrefix)
		if rest == "" {
			rest = "/"
		}
		if !strings.HasPrefix(rest, "/") {
			continue
		}
		return r, rest, true
	}
	return Route{}, "", false
}
