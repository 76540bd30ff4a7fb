package runstate

// Keys はバリアントごとの永続キー名前空間です。
type Keys struct {
	prefix string
}

// NewKeys は prefix を持つ名前空間を生成します。
func NewKeys(prefix string) Keys {
	return Keys{prefix: prefix}
}

// Prefix は名前空間の prefix を返します。
func (k Keys) Prefix() string {
	return k.prefix
}

// RunID は現在のラン ID のキーです。
func (k Keys) RunID() string {
	return k.prefix + "RunId"
}

// ActiveStep は現在のステップ (ヒント) のキーです。
func (k Keys) ActiveStep() string {
	return k.prefix + "ActiveStep"
}

// PayDate は現在のランの支給日のキーです。
func (k Keys) PayDate() string {
	return k.prefix + "PayDate"
}

// Sent は承認送信済みフラグのキーです。
func (k Keys) Sent(runID string) string {
	return k.prefix + "Sent:" + runID
}

// Approved は承認完了を観測したことを示すキーです。
func (k Keys) Approved(runID string) string {
	return k.prefix + "Approved:" + runID
}

// Summary は明細キャッシュのキーです。保存と無効化の両方でこのキーだけを使います。
func (k Keys) Summary(runID string) string {
	return k.prefix + "Summary:" + runID
}
