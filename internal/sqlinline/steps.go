package sqlinline

// QUpsertStep applies a step report keyed by (session_id, step_name) and,
// when $10 is true, mirrors the step name into the session's current_step.
// The data-modifying CTE runs even though the outer select ignores it.
const QUpsertStep = `--sql e2c8a5b0-c41a-471b-9774-4698b9346bcb
with upserted as (
  insert into pipeline_steps (
    session_id, step_name, step_order, status, input_data, output_data,
    ai_model, tokens_used, duration_ms, started_at, completed_at
  )
  values (
    $1::bigint,
    $2::text,
    coalesce($3::int, 0),
    coalesce($4::text, 'running'),
    coalesce($5::jsonb, '{}'::jsonb),
    coalesce($6::jsonb, '{}'::jsonb),
    $7::text,
    coalesce($8::int, 0),
    coalesce($9::int, 0),
    case when coalesce($4::text, 'running') = 'running' then now() end,
    case when $4::text in ('completed', 'failed', 'skipped') then now() end
  )
  on conflict (session_id, step_name) do update
  set step_order = coalesce($3::int, pipeline_steps.step_order),
      status = coalesce($4::text, pipeline_steps.status),
      input_data = coalesce($5::jsonb, pipeline_steps.input_data),
      output_data = coalesce($6::jsonb, pipeline_steps.output_data),
      ai_model = coalesce($7::text, pipeline_steps.ai_model),
      tokens_used = coalesce($8::int, pipeline_steps.tokens_used),
      duration_ms = coalesce($9::int, pipeline_steps.duration_ms),
      started_at = case
        when $4::text = 'running' and pipeline_steps.status <> 'running' then now()
        else pipeline_steps.started_at
      end,
      completed_at = case
        when $4::text in ('completed', 'failed', 'skipped')
         and pipeline_steps.status not in ('completed', 'failed', 'skipped') then now()
        else pipeline_steps.completed_at
      end
  returning
    id, session_id, step_name, step_order, status, input_data, output_data,
    ai_model, tokens_used, duration_ms, started_at, completed_at, created_at
),
mirrored as (
  update pipeline_sessions
  set current_step = $2::text, updated_at = now()
  where id = $1::bigint
    and $10::boolean
    and status not in ('published', 'cancelled')
  returning id
)
select
  id, session_id, step_name, step_order, status, input_data, output_data,
  ai_model, tokens_used, duration_ms, started_at, completed_at, created_at
from upserted;
`

const QListStepsBySession = `--sql d86b81ba-8061-4c71-8181-01237777af80
select
  id, session_id, step_name, step_order, status, input_data, output_data,
  ai_model, tokens_used, duration_ms, started_at, completed_at, created_at
from pipeline_steps
where session_id = $1::bigint
order by step_order asc, id asc;
`
