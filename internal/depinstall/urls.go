package depinstall

// ytDlpURLs maps runtime.GOOS to the latest-release download URL for yt-dlp.
var ytDlpURLs = map[string]string{
	"windows": "https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp.exe",
	"linux":   "https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp",
	"darwin":  "https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp_macos",
}

// ffmpegURLs maps runtime.GOOS to the latest-release archive URL for ffmpeg.
var ffmpegURLs = map[string]string{
	"windows": "https://github.com/BtbN/FFmpeg-Builds/releases/download/latest/ffmpeg-master-latest-win64-gpl.zip",
	"linux":   "https://github.com/BtbN/FFmpeg-Builds/releases/download/latest/ffmpeg-master-latest-linux64-gpl.tar.xz",
	"darwin":  "https://github.com/BtbN/FFmpeg-Builds/releases/download/latest/ffmpeg-master-latest-macos64-gpl.zip",
}

var requestUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
