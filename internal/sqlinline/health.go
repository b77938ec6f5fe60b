package sqlinline

// QPing is the store liveness probe; it goes through the runner so probe
// failures are logged under a marker like every other statement.
const QPing = `--sql e773e05b-3013-4b5e-af39-fb2aa7b086e4
select 1;
`
