package config

// DefaultConfigYAML contains the default configuration YAML content.
// `swdiag-probe init` writes it and the loader defaults mirror it.
const DefaultConfigYAML = `# swdiag probe configuration
#
# Values not specified here use the built-in defaults shown below.
# Every key can also be set through the environment, e.g.
# SWDIAG_POSTGRES_IDLE_N=8 or SWDIAG_STATE_BACKEND=sqlite.

log:
  # debug, info, warn, error
  level: info
  # auto, text, json
  format: auto
  # Append logs to this file instead of stderr. stdout is reserved for the host.
  file: ""

state:
  # file: one snapshot file per module. sqlite: one shared database.
  backend: file
  dir: /var/tmp
  postgres_file: diag_pg_proc.snap
  sqlite_file: swdiag_probes.db

output:
  # json is what the diagnostics host parses. yaml is for reading by hand.
  format: json

postgres:
  command_prefix: "postgres:"
  idle_marker: idle in transaction
  # Consecutive polls a backend may sit idle in transaction before alerting.
  idle_n: 5
  warning_idle_count: 10
  critical_idle_count: 20
  warning_count: 90
  critical_count: 120
  # Component health floor, in tenths of a percent.
  critical_health: 800
  health_time_n: 3
  notify_to: ""

memory:
  meminfo_path: /proc/meminfo
  free_percent_threshold: 10
  free_percent_n: 3
  free_percent_m: 5
  # kB of swap in use.
  swap_inuse_threshold: 500000
  swap_inuse_n: 10
  swap_inuse_m: 15
  notify_to: ""
`
