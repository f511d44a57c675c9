package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Export level messages (info)
		"Starting export of %d sources (%s layout, %s sync)": "%d 本の動画の書き出しを開始します (%s レイアウト, %s 同期)",
		"Resolving sources":                                       "入力動画を解析中",
		"%s: %dx%d coded, rotation %d, %d ms, codec %s, audio %v": "%s: %dx%d (符号化), 回転 %d, %d ms, コーデック %s, 音声 %v",
		"Prober %d failed on %s: %v":                              "プローバー %d が %s で失敗しました: %v",
		"Planned %d segments, %d ms total":                        "%d セグメント、合計 %d ms を計画しました",
		"Generated %d overlay elements":                           "%d 個のオーバーレイ要素を生成しました",
		"Planned %d segments covering %d ms":                      "%d セグメント (%d ms) を計画しました",
		"Plan truncated: %s":                                      "計画を途中で打ち切りました: %s",
		"Layout calculated: %dx%d canvas":                         "レイアウト計算完了: %dx%d キャンバス",
		"Exporting with %s backend":                               "%s バックエンドで書き出し中",
		"Output saved to %s (%d bytes)":                           "出力を %s に保存しました (%d バイト)",
		"Export completed in %d ms":                               "書き出しが %d ms で完了しました",
		"Export cancelled":                                        "書き出しがキャンセルされました",
		"Interrupted, shutting down...":                           "中断されました。シャットダウン中...",

		// Composite stage
		"Compositing %d frames with %d workers": "%d フレームを %d ワーカーで合成中",
		"Composition completed":                 "合成が完了しました",

		// Encode stage
		"Encoding at %.1f fps": "%.1f fps でエンコード中",
		"Encoded %d frames":    "%d フレームをエンコードしました",
		"Encoding completed":   "エンコードが完了しました",

		// Export backends
		"Selected %s backend (requested %s)": "%s バックエンドを選択しました (要求: %s)",
		"Running ffmpeg with %d inputs":      "%d 入力で ffmpeg を実行中",
		"Decoding segment %d/%d":             "セグメント %d/%d をデコード中",
		"Muxing %d audio tracks":             "%d 本の音声トラックを多重化中",
		"No audio tracks to mux":             "多重化する音声トラックはありません",

		// Warnings
		"Overlay %s for source %d skipped: %v":   "ソース %[2]d のオーバーレイ %[1]s をスキップしました: %[3]v",
		"%d overlay elements skipped":            "%d 個のオーバーレイ要素をスキップしました",
		"Could not remove temporary file %s: %v": "一時ファイル %s を削除できませんでした: %v",
		"Could not verify output: %v":            "出力を検証できませんでした: %v",

		// Errors
		"Export failed: %s":                         "書き出しに失敗しました: %s",
		"%s backend failed, falling back to %s: %v": "%s バックエンドが失敗したため %s に切り替えます: %v",
		"Failed to write output: %s":                "出力の書き込みに失敗しました: %s",
	})
}
