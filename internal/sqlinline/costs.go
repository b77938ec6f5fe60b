package sqlinline

const QInsertCost = `--sql 3668dad0-ded2-4215-a589-8c561624ef93
insert into ai_costs (
  session_id, step_name, provider, model,
  tokens_prompt, tokens_completion, tokens_total, cost_usd, duration_ms
)
values ($1::bigint, $2::text, $3::text, $4::text, $5::int, $6::int, $7::int, $8::numeric, $9::int)
returning
  id, session_id, step_name, provider, model,
  tokens_prompt, tokens_completion, tokens_total, cost_usd::float8, duration_ms, created_at;
`

const QListCostsBySession = `--sql a0b4fb86-c5ff-4814-9da5-162eff5fd90f
select
  id, session_id, step_name, provider, model,
  tokens_prompt, tokens_completion, tokens_total, cost_usd::float8, duration_ms, created_at
from ai_costs
where session_id = $1::bigint
order by created_at asc, id asc;
`
