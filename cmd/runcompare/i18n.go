// Package main provides localization for the runcompare CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Flag categories
		"Input":             "入力",
		"Output":            "出力先",
		"Video and Quality": "動画と品質",
		"Debug":             "デバッグ",
		"Logging":           "ログ",

		// Root command
		"Create synchronized comparison videos of athlete runs":                                                                "選手の走行を同期させた比較動画を作成",
		"runcompare places two or four run videos side by side, aligns them at their start or lap by lap, and writes one MP4.": "runcompareは2本または4本の走行動画を並べ、スタートまたはラップごとに同期させて1本のMP4に書き出します。",

		// Commands
		"Render a comparison video":               "比較動画を書き出す",
		"Print the segment plan without encoding": "エンコードせずにセグメント計画を表示",
		"Show version information":                "バージョン情報を表示",
		"runcompare version %s":                   "runcompare バージョン %s",

		// Input flags
		"YAML configuration file":                                                 "YAML設定ファイル",
		"YAML request file describing sources, laps and display text":             "入力動画、ラップ、表示テキストを記述したYAMLリクエストファイル",
		"Layout when sources are given as arguments (horizontal, vertical, grid)": "引数で動画を指定した場合のレイアウト（horizontal, vertical, grid）",
		"Cap the output duration in milliseconds (0 = unlimited)":                 "出力の最大長（ミリ秒、0 = 無制限）",

		// Output flags
		"Output MP4 file path":                               "出力MP4ファイルパス",
		"Output execution summary to file (Markdown format)": "実行サマリーをファイルに出力（Markdown形式）",

		// Video flags
		"Export backend (auto, ffmpeg, frames)":                             "書き出しバックエンド（auto, ffmpeg, frames）",
		"Output frame rate":                                                 "出力フレームレート",
		"Quality preset (low, medium, high)":                                "品質プリセット（low, medium, high）",
		"Video CRF value (0-63, lower is better, overrides quality preset)": "動画のCRF値（0-63、低いほど高品質、品質プリセットを上書き）",
		"Path to the ffmpeg executable":                                     "ffmpeg実行ファイルのパス",

		// Debug flags
		"Enable debug output":        "デバッグ出力を有効化",
		"Directory for debug output": "デバッグ出力のディレクトリ",

		// Logging flags
		"Log level (debug, info, warn, error)": "ログレベル（debug, info, warn, error）",
		"Suppress all log output":              "全てのログ出力を抑制",

		// Runtime messages
		"Comparing %d videos into %s": "%d 本の動画を比較して %s に書き出します",
		"Exporting":                   "書き出し中",
		"Output saved to %s":          "出力を %s に保存しました",
		"Export failed (%s): %s":      "書き出しに失敗しました (%s): %s",
		"Either --request or video arguments are required": "--request か動画の引数が必要です",
		"Sync":     "同期",
		"segments": "セグメント",
		"Total":    "合計",

		// Summary output
		"Summary saved to %s":         "サマリーを %s に保存しました",
		"Failed to write summary: %s": "サマリーの書き込みに失敗しました: %s",

		// Summary content
		"Run Comparison Summary": "走行比較サマリー",
		"Generated":              "生成日時",
		"Result":                 "実行結果",
		"Status":                 "状態",
		"Success":                "成功",
		"Failed":                 "失敗",
		"Settings":               "設定",
		"Item":                   "項目",
		"Value":                  "値",
		"Unlimited":              "無制限",
		"Sources":                "入力動画",
		"Athlete":                "選手",
		"File":                   "ファイル",
		"Start":                  "開始",
		"Laps":                   "ラップ数",
		"Segments":               "セグメント",
		"Segment":                "セグメント",
		"Starts at":              "開始位置",
		"Length":                 "長さ",
		"Source %d":              "動画 %d",
		"Video Details":          "動画詳細",
	})
}
